package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modmake/internal/compiler"
	"github.com/albertocavalcante/modmake/internal/plugin"
	"github.com/albertocavalcante/modmake/pkg/config"
)

// compileFlags are the configuration overrides shared by build and watch.
type compileFlags struct {
	profile     bool
	noCache     bool
	treeShaking bool
	parallelism int
	sourceMap   string
	parser      string
}

func addCompileFlags(cmd *cobra.Command, f *compileFlags) {
	cmd.Flags().BoolVar(&f.profile, "profile", false,
		"Record per-module build timings")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false,
		"Rebuild every module instead of reusing cached builds")
	cmd.Flags().BoolVar(&f.treeShaking, "tree-shaking", false,
		"Keep export analysis results for tree shaking")
	cmd.Flags().IntVarP(&f.parallelism, "parallelism", "j", 0,
		"Maximum number of concurrent module builds (default: config or GOMAXPROCS)")
	cmd.Flags().StringVar(&f.sourceMap, "source-map", "",
		"Source map kind passed to module builds (none, simple, full)")
	cmd.Flags().StringVar(&f.parser, "parser", "",
		"How scripts are scanned for imports (line, syntax)")
}

// apply overrides cfg with the flags the user set explicitly.
func (f *compileFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("profile") {
		cfg.Build.Profile = &f.profile
	}
	if flags.Changed("no-cache") {
		enabled := !f.noCache
		cfg.Cache.Enabled = &enabled
	}
	if flags.Changed("tree-shaking") {
		cfg.Optimization.TreeShaking = &f.treeShaking
	}
	if flags.Changed("parallelism") {
		cfg.Build.Parallelism = f.parallelism
	}
	if flags.Changed("source-map") {
		cfg.Build.SourceMap = f.sourceMap
	}
	if flags.Changed("parser") {
		cfg.Build.Parser = f.parser
	}
}

// contextDir returns the absolute project directory.
func contextDir() (string, error) {
	dir := globalFlags.context
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid context %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("invalid context %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("context must be a directory: %s", abs)
	}
	return abs, nil
}

// loadConfig layers the configuration files of the context directory under
// the flags of cmd.
func loadConfig(cmd *cobra.Command, f *compileFlags) (*config.Config, error) {
	dir, err := contextDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFrom(dir)
	if err != nil {
		return nil, err
	}
	if globalFlags.context != "" {
		cfg.Build.Context = dir
	}
	f.apply(cmd, cfg)
	return cfg, nil
}

func newCompiler(cfg *config.Config, progress *plugin.Progress) (*compiler.Compiler, error) {
	return compiler.New(cfg, compiler.WithPlugins(progress))
}

func outputJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
