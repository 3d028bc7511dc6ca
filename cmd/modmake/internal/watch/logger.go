package watch

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/albertocavalcante/modmake/internal/compiler"
)

// ChangeType represents the type of file change.
type ChangeType string

const (
	ChangeAdded    ChangeType = "+"
	ChangeModified ChangeType = "~"
	ChangeDeleted  ChangeType = "-"
)

// Logger handles watch mode output formatting.
type Logger struct {
	writer  io.Writer
	isTTY   bool
	verbose bool
	noColor bool
	jsonOut bool

	statsMu sync.Mutex
	stats   WatchStats
}

// WatchStats tracks statistics for the watch session.
type WatchStats struct {
	BuildCount int
	ErrorCount int
	StartTime  time.Time
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
	JSON    bool
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	isTTY := false
	if f, ok := writer.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	return &Logger{
		writer:  writer,
		isTTY:   isTTY,
		verbose: cfg.Verbose,
		noColor: cfg.NoColor,
		jsonOut: cfg.JSON,
		stats: WatchStats{
			StartTime: time.Now(),
		},
	}
}

// Ready logs that the initial compilation finished and watching started.
func (l *Logger) Ready(fileCount int, entries []string, path string) {
	if l.jsonOut {
		l.emit("ready", "files", fileCount, "entries", entries, "path", path)
		return
	}

	l.printf("modmake: watching %d files in %s\n", fileCount, path)
	if len(entries) > 0 {
		l.printf("modmake: entries: %s\n", strings.Join(entries, ", "))
	}
	l.println("modmake: ready")
	l.println()
}

// FileChanged logs a file change event.
func (l *Logger) FileChanged(path string, change ChangeType) {
	if l.jsonOut {
		l.emit("file_changed", "path", path, "change", string(change))
		return
	}

	if l.verbose {
		l.printf("[%s] %s %s\n", l.timestamp(), l.colorize(string(change), change), path)
	}
}

// Rebuilding logs that a rebuild is starting.
func (l *Logger) Rebuilding(paths []string, invalidated int) {
	if l.jsonOut {
		l.emit("rebuilding", "paths", paths, "invalidated", invalidated)
		return
	}

	if len(paths) == 1 {
		l.printf("[%s] rebuilding after change to %s...\n", l.timestamp(), paths[0])
	} else {
		l.printf("[%s] rebuilding after %d changes...\n", l.timestamp(), len(paths))
	}
}

// Built logs a finished compilation. Compilations with error diagnostics
// count as errors.
func (l *Logger) Built(stats compiler.Stats) {
	l.statsMu.Lock()
	l.stats.BuildCount++
	if stats.Errors > 0 {
		l.stats.ErrorCount++
	}
	l.statsMu.Unlock()

	if l.jsonOut {
		l.emit("built", "stats", stats)
		return
	}

	mark := l.colorize("✓", ChangeAdded)
	if stats.Errors > 0 {
		mark = l.colorize("✗", ChangeDeleted)
	}
	l.printf("[%s] %s %d modules (%d rebuilt, %d cached), %d errors, %d warnings in %s\n",
		l.timestamp(), mark, stats.Modules, stats.CacheMisses, stats.CacheHits,
		stats.Errors, stats.Warnings, stats.Duration.Round(time.Millisecond))
}

// Error logs an error.
func (l *Logger) Error(err error) {
	l.statsMu.Lock()
	l.stats.ErrorCount++
	l.statsMu.Unlock()

	if l.jsonOut {
		l.emit("error", "error", err.Error())
		return
	}

	xmark := l.colorize("✗", ChangeDeleted)
	l.printf("[%s] %s error: %v\n", l.timestamp(), xmark, err)
}

// Shutdown logs the shutdown message with statistics.
func (l *Logger) Shutdown() {
	stats := l.Stats()

	if l.jsonOut {
		l.emit("shutdown", "builds", stats.BuildCount, "errors", stats.ErrorCount,
			"duration", time.Since(stats.StartTime).String())
		return
	}

	l.println()
	l.printf("modmake: shutting down (%d builds, %d errors)\n",
		stats.BuildCount, stats.ErrorCount)
}

// Stats returns the current watch statistics.
func (l *Logger) Stats() WatchStats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats
}

func (l *Logger) timestamp() string {
	return time.Now().Format("15:04:05")
}

// colorize applies ANSI color codes based on change type.
func (l *Logger) colorize(s string, change ChangeType) string {
	if l.noColor || !l.isTTY {
		return s
	}

	var color string
	switch change {
	case ChangeAdded:
		color = "\033[32m"
	case ChangeModified:
		color = "\033[33m"
	case ChangeDeleted:
		color = "\033[31m"
	default:
		return s
	}
	return color + s + "\033[0m"
}

// emit writes one JSON event line. kv alternates keys and values.
func (l *Logger) emit(event string, kv ...any) {
	fields := make(map[string]any, len(kv)/2+2)
	fields["event"] = event
	fields["time"] = time.Now().Format(time.RFC3339)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		l.println(`{"event":"internal_error","error":"json marshal failed"}`)
		return
	}
	l.println(string(data))
}

// Output errors are ignored; watch output is informational.
func (l *Logger) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(l.writer, format, args...)
}

func (l *Logger) println(args ...any) {
	_, _ = fmt.Fprintln(l.writer, args...)
}
