// Package config provides compiler configuration for modmake.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Global user config (~/.config/modmake/config.toml)
//  3. Project config (.modmake/config.toml or modmake.toml)
//  4. Environment variables (MODMAKE_*)
//  5. CLI flags (highest priority)
package config

import (
	"fmt"
	"runtime"
	"slices"
)

// Config is the compiler configuration shared read-only by every build.
type Config struct {
	// Build configures the module-build stage.
	Build BuildConfig `toml:"build"`

	// Cache configures the build cache.
	Cache CacheConfig `toml:"cache"`

	// Optimization configures whole-program optimizations.
	Optimization OptimizationConfig `toml:"optimization"`

	// Resolve configures request resolution.
	Resolve ResolveConfig `toml:"resolve"`
}

// BuildConfig holds module-build settings.
type BuildConfig struct {
	// Context is the directory entries are resolved from. Empty means the
	// working directory.
	Context string `toml:"context"`

	// Parallelism bounds concurrently running module builds.
	Parallelism int `toml:"parallelism"`

	// Profile records per-module build timings.
	Profile *bool `toml:"profile"`

	// SourceMap is one of "none", "simple" or "full".
	SourceMap string `toml:"source_map"`

	// Parser is "line" or "syntax". Syntax scanning needs a CGO build.
	Parser string `toml:"parser"`
}

// CacheConfig holds build cache settings.
type CacheConfig struct {
	// Enabled turns the in-memory build cache on.
	Enabled *bool `toml:"enabled"`

	// MaxEntries bounds the number of cached module builds.
	MaxEntries int `toml:"max_entries"`
}

// OptimizationConfig holds optimization settings.
type OptimizationConfig struct {
	// TreeShaking keeps per-module export analysis for later pruning.
	TreeShaking *bool `toml:"tree_shaking"`
}

// ResolveConfig holds resolver settings.
type ResolveConfig struct {
	// Extensions are probed in order for extension-less requests.
	Extensions []string `toml:"extensions"`

	// MainFiles are probed in order when a request names a directory.
	MainFiles []string `toml:"main_files"`
}

// NewConfig creates a new Config with built-in defaults.
func NewConfig() *Config {
	trueVal := true
	falseVal := false
	return &Config{
		Build: BuildConfig{
			Parallelism: runtime.GOMAXPROCS(0),
			Profile:     &falseVal,
			SourceMap:   "none",
			Parser:      "line",
		},
		Cache: CacheConfig{
			Enabled:    &trueVal,
			MaxEntries: 4096,
		},
		Optimization: OptimizationConfig{
			TreeShaking: &falseVal,
		},
		Resolve: ResolveConfig{
			Extensions: []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx", ".json"},
			MainFiles:  []string{"index"},
		},
	}
}

// ProfileEnabled reports whether module build timings are recorded.
func (c *Config) ProfileEnabled() bool {
	return c.Build.Profile != nil && *c.Build.Profile
}

// CacheEnabled reports whether the build cache is on.
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled != nil && *c.Cache.Enabled
}

// TreeShakingEnabled reports whether export analysis is retained.
func (c *Config) TreeShakingEnabled() bool {
	return c.Optimization.TreeShaking != nil && *c.Optimization.TreeShaking
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Build.Parallelism < 1 {
		return fmt.Errorf("build.parallelism must be at least 1, got %d", c.Build.Parallelism)
	}
	if !slices.Contains([]string{"", "none", "simple", "full"}, c.Build.SourceMap) {
		return fmt.Errorf("build.source_map must be one of none, simple, full, got %q", c.Build.SourceMap)
	}
	if !slices.Contains([]string{"", "line", "syntax"}, c.Build.Parser) {
		return fmt.Errorf("build.parser must be line or syntax, got %q", c.Build.Parser)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must not be negative, got %d", c.Cache.MaxEntries)
	}
	for _, ext := range c.Resolve.Extensions {
		if len(ext) < 2 || ext[0] != '.' {
			return fmt.Errorf("resolve.extensions entry %q must start with a dot", ext)
		}
	}
	return nil
}

// Merge merges another config into this one (other takes precedence).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Build.Context != "" {
		c.Build.Context = other.Build.Context
	}
	if other.Build.Parallelism != 0 {
		c.Build.Parallelism = other.Build.Parallelism
	}
	if other.Build.Profile != nil {
		c.Build.Profile = other.Build.Profile
	}
	if other.Build.SourceMap != "" {
		c.Build.SourceMap = other.Build.SourceMap
	}
	if other.Build.Parser != "" {
		c.Build.Parser = other.Build.Parser
	}

	if other.Cache.Enabled != nil {
		c.Cache.Enabled = other.Cache.Enabled
	}
	if other.Cache.MaxEntries != 0 {
		c.Cache.MaxEntries = other.Cache.MaxEntries
	}

	if other.Optimization.TreeShaking != nil {
		c.Optimization.TreeShaking = other.Optimization.TreeShaking
	}

	if len(other.Resolve.Extensions) > 0 {
		c.Resolve.Extensions = other.Resolve.Extensions
	}
	if len(other.Resolve.MainFiles) > 0 {
		c.Resolve.MainFiles = other.Resolve.MainFiles
	}
}
