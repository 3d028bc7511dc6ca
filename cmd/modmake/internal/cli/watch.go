package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modmake/cmd/modmake/internal/watch"
	"github.com/albertocavalcante/modmake/internal/log"
	"github.com/albertocavalcante/modmake/internal/metrics"
	"github.com/albertocavalcante/modmake/internal/plugin"
)

var watchFlags struct {
	compile     compileFlags
	debounce    int
	verbose     bool
	json        bool
	noColor     bool
	metricsAddr string
}

var watchCmd = &cobra.Command{
	Use:   "watch <entry>...",
	Short: "Rebuild the module graph whenever a dependency changes",
	Long: `Builds the given entries and keeps rebuilding them as files change.

Only files the last build depended on trigger a rebuild, including paths it
probed and did not find. Unchanged modules are served from the build cache.

Example output:

  $ modmake watch ./src/index.js

  modmake: watching 42 files in /path/to/project
  modmake: entries: ./src/index.js
  modmake: ready

  [14:32:15] rebuilding after change to /path/to/project/src/a.js...
  [14:32:15] ✓ 42 modules (1 rebuilt, 41 cached), 0 errors, 0 warnings in 8ms

With --metrics-addr, Prometheus metrics are served at /metrics.

Press Ctrl+C to stop watching.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	addCompileFlags(watchCmd, &watchFlags.compile)
	watchCmd.Flags().IntVar(&watchFlags.debounce, "debounce", 200,
		"Debounce window in milliseconds")
	watchCmd.Flags().BoolVar(&watchFlags.verbose, "verbose", false,
		"Show file-level changes")
	watchCmd.Flags().BoolVar(&watchFlags.json, "json", false,
		"Stream JSON events (for tooling integration)")
	watchCmd.Flags().BoolVar(&watchFlags.noColor, "no-color", false,
		"Disable colored output")
	watchCmd.Flags().StringVar(&watchFlags.metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, &watchFlags.compile)
	if err != nil {
		return err
	}
	c, err := newCompiler(cfg, plugin.NewProgress(nil))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(buildContext(cmd), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	if watchFlags.metricsAddr != "" {
		stop, err := serveMetrics(watchFlags.metricsAddr)
		if err != nil {
			return err
		}
		defer stop()
	}

	w, err := watch.New(watch.Config{
		Root:     cfg.Build.Context,
		Entries:  args,
		Debounce: watchFlags.debounce,
		Verbose:  watchFlags.verbose,
		NoColor:  watchFlags.noColor,
		JSON:     watchFlags.json,
		Writer:   cmd.OutOrStdout(),
	}, c)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	return w.Run(ctx)
}

// serveMetrics starts a metrics server on addr and returns a function that
// shuts it down.
func serveMetrics(addr string) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(metrics.NewRegistry()))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger := log.Component("metrics")
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return nil, fmt.Errorf("failed to serve metrics on %s: %w", addr, err)
	case <-time.After(50 * time.Millisecond):
	}
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}, nil
}
