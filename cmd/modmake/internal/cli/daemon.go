package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modmake/cmd/modmake/internal/daemon"
	"github.com/albertocavalcante/modmake/internal/plugin"
)

var daemonFlags struct {
	compile compileFlags
	json    bool
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the resident build daemon",
	Long: `The daemon keeps a compiler and its build cache in memory so that
'modmake build --daemon' only rebuilds modules whose files changed.

There is at most one daemon per project; its socket and PID file live in the
project's .modmake directory.`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the daemon in the foreground",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the daemon is running and its cache counters",
	RunE:  runDaemonStatus,
}

func init() {
	addCompileFlags(daemonStartCmd, &daemonFlags.compile)
	daemonStatusCmd.Flags().BoolVar(&daemonFlags.json, "json", false,
		"Output as JSON")

	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemonStart(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, &daemonFlags.compile)
	if err != nil {
		return err
	}
	c, err := newCompiler(cfg, plugin.NewProgress(nil))
	if err != nil {
		return err
	}

	srv, err := daemon.NewServer(daemon.ServerConfig{
		Context: cfg.Build.Context,
		Version: Version,
		Builder: c,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(buildContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		select {
		case <-srv.Ready():
			fmt.Fprintf(cmd.OutOrStdout(), "modmake: daemon serving %s\n", cfg.Build.Context)
		case <-ctx.Done():
		}
	}()
	return srv.Start(ctx)
}

func runDaemonStop(cmd *cobra.Command, _ []string) error {
	dir, err := contextDir()
	if err != nil {
		return err
	}

	client, err := daemon.ConnectProject(dir)
	if errors.Is(err, daemon.ErrDaemonNotRunning) {
		// The socket is gone; fall back to the PID file.
		status := daemon.GetStatus(daemon.ProjectPaths(dir))
		if !status.Running {
			if _, err := daemon.CleanupStale(daemon.ProjectPaths(dir)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
			return nil
		}
		if err := daemon.StopProcess(status.PID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to daemon (pid %d)\n", status.PID)
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	res, err := client.Shutdown()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}

// DaemonStatusOutput is the JSON output format for modmake daemon status.
type DaemonStatusOutput struct {
	daemon.Status
	Version string                   `json:"version,omitempty"`
	Uptime  string                   `json:"uptime,omitempty"`
	Cache   *daemon.CacheStatsResult `json:"cache,omitempty"`
}

func runDaemonStatus(cmd *cobra.Command, _ []string) error {
	dir, err := contextDir()
	if err != nil {
		return err
	}

	out := DaemonStatusOutput{Status: *daemon.GetStatus(daemon.ProjectPaths(dir))}
	if client, err := daemon.ConnectProject(dir); err == nil {
		defer func() { _ = client.Close() }()
		if ping, err := client.Ping(); err == nil {
			out.Running = true
			out.Version = ping.Version
			out.Uptime = ping.Uptime
		}
		if stats, err := client.CacheStats(); err == nil {
			out.Cache = stats
		}
	}

	if daemonFlags.json {
		return outputJSON(cmd, out)
	}

	w := cmd.OutOrStdout()
	if !out.Running {
		fmt.Fprintln(w, "Daemon is not running")
		if out.Stale {
			fmt.Fprintf(w, "Stale PID file for pid %d; 'modmake daemon stop' removes it\n", out.PID)
		}
		return nil
	}
	fmt.Fprintf(w, "Daemon is running (pid %d, version %s, up %s)\n", out.PID, out.Version, out.Uptime)
	if out.Cache != nil {
		fmt.Fprintf(w, "  builds: %d, cache hits: %d, misses: %d (%.0f%%)\n",
			out.Cache.Builds, out.Cache.Hits, out.Cache.Misses, out.Cache.HitRatio*100)
	}
	return nil
}

// buildViaDaemon runs a build in the project's daemon. It reports false when
// no daemon is running.
func buildViaDaemon(cmd *cobra.Command, dir string, entries []string) (bool, error) {
	client, err := daemon.ConnectProject(dir)
	if errors.Is(err, daemon.ErrDaemonNotRunning) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() { _ = client.Close() }()

	res, err := client.Build(entries)
	if err != nil {
		return true, err
	}

	out := BuildOutput{
		Entries:  entries,
		Stats:    res.Stats,
		Errors:   res.Errors,
		Warnings: res.Warnings,
		Missing:  res.Missing,
	}
	if buildFlags.json {
		if err := outputJSON(cmd, out); err != nil {
			return true, err
		}
	} else {
		printBuild(cmd.OutOrStdout(), out, false)
	}
	if len(out.Errors) > 0 {
		return true, fmt.Errorf("%w: %d errors", ErrBuildFailed, len(out.Errors))
	}
	return true, nil
}
