package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the project-level config file.
const ConfigFileName = "modmake.toml"

// ConfigDirName is the name of the project-level state and config directory.
const ConfigDirName = ".modmake"

// GlobalConfigDir is the name of the global config directory inside the user's config dir.
const GlobalConfigDir = "modmake"

// Load loads configuration from all layers starting at the working directory.
//
// CLI flags are applied separately after Load returns.
func Load() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return LoadFrom(wd)
}

// LoadFrom loads configuration starting from a specific directory:
//  1. Built-in defaults
//  2. Global user config
//  3. Project config found by walking up from dir
//  4. Environment variables (MODMAKE_*)
func LoadFrom(dir string) (*Config, error) {
	cfg := NewConfig()

	globalCfg, err := loadConfigFile(GetGlobalConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.Merge(globalCfg)

	projectCfg, err := loadProjectConfigFrom(dir)
	if err != nil {
		return nil, err
	}
	cfg.Merge(projectCfg)

	if err := applyEnvironmentVariables(cfg); err != nil {
		return nil, err
	}

	if cfg.Build.Context == "" {
		cfg.Build.Context = dir
	}
	return cfg, nil
}

// loadProjectConfigFrom looks for project configuration starting from dir
// and walking up until a workspace root.
func loadProjectConfigFrom(dir string) (*Config, error) {
	current := dir
	for {
		for _, path := range GetProjectConfigPaths(current) {
			cfg, err := loadConfigFile(path)
			if err != nil {
				return nil, err
			}
			if cfg != nil {
				return cfg, nil
			}
		}

		if isWorkspaceRoot(current) {
			return nil, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil, nil
		}
		current = parent
	}
}

// isWorkspaceRoot checks if the directory has a VCS or package marker.
func isWorkspaceRoot(dir string) bool {
	markers := []string{".git", "package.json", ".hg"}
	for _, marker := range markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// loadConfigFile decodes a TOML file. A missing file yields (nil, nil).
func loadConfigFile(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// applyEnvironmentVariables applies MODMAKE_* environment variables to the config.
func applyEnvironmentVariables(cfg *Config) error {
	if v := os.Getenv("MODMAKE_CONTEXT"); v != "" {
		cfg.Build.Context = v
	}
	if v := os.Getenv("MODMAKE_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MODMAKE_PARALLELISM: %w", err)
		}
		cfg.Build.Parallelism = n
	}
	if v := os.Getenv("MODMAKE_SOURCE_MAP"); v != "" {
		cfg.Build.SourceMap = v
	}
	if v := os.Getenv("MODMAKE_PARSER"); v != "" {
		cfg.Build.Parser = v
	}
	if v := os.Getenv("MODMAKE_CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MODMAKE_CACHE_MAX_ENTRIES: %w", err)
		}
		cfg.Cache.MaxEntries = n
	}
	if v := os.Getenv("MODMAKE_RESOLVE_EXTENSIONS"); v != "" {
		cfg.Resolve.Extensions = splitAndTrim(v)
	}

	applyBoolEnv("MODMAKE_PROFILE", &cfg.Build.Profile)
	applyBoolEnv("MODMAKE_CACHE_ENABLED", &cfg.Cache.Enabled)
	applyBoolEnv("MODMAKE_TREE_SHAKING", &cfg.Optimization.TreeShaking)
	return nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// applyBoolEnv applies a boolean environment variable to a pointer.
func applyBoolEnv(envVar string, target **bool) {
	if v := os.Getenv(envVar); v != "" {
		v = strings.ToLower(v)
		if v == "true" || v == "1" || v == "yes" {
			t := true
			*target = &t
		} else if v == "false" || v == "0" || v == "no" {
			f := false
			*target = &f
		}
	}
}

// GetGlobalConfigPath returns the path to the global config file.
func GetGlobalConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

// GetProjectConfigPaths returns potential project config paths for a given directory.
func GetProjectConfigPaths(dir string) []string {
	return []string{
		filepath.Join(dir, ConfigDirName, "config.toml"),
		filepath.Join(dir, ConfigFileName),
	}
}
