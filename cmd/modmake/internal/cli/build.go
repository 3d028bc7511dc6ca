package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modmake/internal/compiler"
	"github.com/albertocavalcante/modmake/internal/plugin"
	"github.com/albertocavalcante/modmake/internal/snapshot"
)

var buildFlags struct {
	compile compileFlags
	json    bool
	verbose bool
	daemon  bool
}

var buildCmd = &cobra.Command{
	Use:   "build <entry>...",
	Short: "Build the module graph reachable from the given entries",
	Long: `Resolves every entry request against the context directory, builds each
module reachable from them and links the dependency graph.

Errors and warnings found in modules are printed and make the command exit
non-zero; the graph is still built as far as possible. After a build the
file snapshot used by 'modmake status' is refreshed.

The --json flag prints the graph summary as JSON for scripting. With
--daemon, the build runs in the project's daemon (see 'modmake daemon') and
reuses its in-memory cache; configuration flags then come from the daemon.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	addCompileFlags(buildCmd, &buildFlags.compile)
	buildCmd.Flags().BoolVar(&buildFlags.json, "json", false,
		"Output as JSON")
	buildCmd.Flags().BoolVar(&buildFlags.verbose, "verbose", false,
		"List every module in the graph")
	buildCmd.Flags().BoolVar(&buildFlags.daemon, "daemon", false,
		"Build in the project's running daemon, falling back to a local build")

	rootCmd.AddCommand(buildCmd)
}

// ErrBuildFailed is returned when a compilation reports error diagnostics.
var ErrBuildFailed = errors.New("build failed")

// ModuleOutput describes one module of a build.
type ModuleOutput struct {
	ID        string   `json:"id"`
	Issuer    string   `json:"issuer,omitempty"`
	BuildTime string   `json:"build_time,omitempty"`
	Bailouts  []string `json:"bailouts,omitempty"`
}

// BuildOutput is the JSON output format for modmake build.
type BuildOutput struct {
	Entries  []string       `json:"entries"`
	Stats    compiler.Stats `json:"stats"`
	Modules  []ModuleOutput `json:"modules"`
	Errors   []string       `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Missing  []string       `json:"missing,omitempty"`
}

func newBuildOutput(comp *compiler.Compilation) BuildOutput {
	out := BuildOutput{
		Entries: comp.Entries,
		Stats:   comp.Stats,
		Missing: comp.MissingDependencies,
	}
	for _, m := range comp.Graph.Modules() {
		mo := ModuleOutput{
			ID:       string(m.Identifier()),
			Bailouts: comp.Graph.OptimizationBailouts(m.Identifier()),
		}
		if gm, ok := comp.Graph.GraphModule(m.Identifier()); ok {
			mo.Issuer = string(gm.Issuer)
			if gm.Profile != nil {
				mo.BuildTime = gm.Profile.BuildDuration().String()
			}
		}
		out.Modules = append(out.Modules, mo)
	}
	for _, d := range comp.Errors() {
		out.Errors = append(out.Errors, d.String())
	}
	for _, d := range comp.Warnings() {
		out.Warnings = append(out.Warnings, d.String())
	}
	return out
}

func runBuild(cmd *cobra.Command, args []string) error {
	if buildFlags.daemon {
		dir, err := contextDir()
		if err != nil {
			return err
		}
		if ok, err := buildViaDaemon(cmd, dir, args); ok || err != nil {
			return err
		}
	}

	cfg, err := loadConfig(cmd, &buildFlags.compile)
	if err != nil {
		return err
	}
	c, err := newCompiler(cfg, plugin.NewProgress(nil))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(buildContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	comp, err := c.Compile(ctx, args...)
	if err != nil {
		return err
	}

	tracker := snapshot.NewTracker(cfg.Build.Context)
	if err := tracker.Refresh(ctx, comp.SnapshotPaths(), comp.MissingDependencies); err != nil {
		return err
	}

	out := newBuildOutput(comp)
	if buildFlags.json {
		if err := outputJSON(cmd, out); err != nil {
			return err
		}
	} else {
		printBuild(cmd.OutOrStdout(), out, buildFlags.verbose)
	}

	if len(out.Errors) > 0 {
		return fmt.Errorf("%w: %d errors", ErrBuildFailed, len(out.Errors))
	}
	return nil
}

func printBuild(w io.Writer, out BuildOutput, verbose bool) {
	if verbose {
		for _, m := range out.Modules {
			if m.BuildTime != "" {
				fmt.Fprintf(w, "  %s (%s)\n", m.ID, m.BuildTime)
			} else {
				fmt.Fprintf(w, "  %s\n", m.ID)
			}
			for _, b := range m.Bailouts {
				fmt.Fprintf(w, "    bailout: %s\n", b)
			}
		}
	}
	for _, e := range out.Errors {
		fmt.Fprintln(w, e)
	}
	for _, warning := range out.Warnings {
		fmt.Fprintln(w, warning)
	}

	s := out.Stats
	fmt.Fprintf(w, "%d modules, %d dependencies, %d blocks in %s (%d cached, %d built)\n",
		s.Modules, s.Dependencies, s.Blocks, s.Duration.Round(time.Millisecond), s.CacheHits, s.CacheMisses)
	if s.Errors > 0 || s.Warnings > 0 {
		fmt.Fprintf(w, "%d errors, %d warnings\n", s.Errors, s.Warnings)
	}
}

// buildContext is used when a command runs without a cobra context.
func buildContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
