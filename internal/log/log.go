package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	current   atomic.Pointer[slog.Logger]
	level     = new(slog.LevelVar)
	verbosity atomic.Int32
)

func init() {
	// Warnings only until Init runs.
	configure(VerbosityWarn, "text", os.Stderr)
}

func configure(v int, format string, w io.Writer) *slog.Logger {
	verbosity.Store(int32(v))
	level.Set(VerbosityToLevel(v))
	l := slog.New(NewHandler(HandlerOptions{
		Level:  level,
		Format: format,
		Output: w,
	}))
	current.Store(l)
	return l
}

// Init configures the process logger from -v=N and --log-format and makes it
// the slog default.
func Init(v int, format string) {
	slog.SetDefault(configure(v, format, os.Stderr))
}

// SetVerbosity changes verbosity at runtime without replacing the handler.
func SetVerbosity(v int) {
	verbosity.Store(int32(v))
	level.Set(VerbosityToLevel(v))
}

// Verbosity returns the current verbosity level.
func Verbosity() int {
	return int(verbosity.Load())
}

// Enabled reports whether records at l are currently emitted.
func Enabled(l slog.Level) bool {
	return l >= level.Level()
}

// Logger returns the current logger instance.
func Logger() *slog.Logger {
	return current.Load()
}

func Error(msg string, args ...any) {
	current.Load().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	current.Load().Warn(msg, args...)
}

func Info(msg string, args ...any) {
	current.Load().Info(msg, args...)
}

// Debug logs through the logger carried by ctx, so records emitted during a
// compilation keep its attributes.
func Debug(ctx context.Context, msg string, args ...any) {
	if !Enabled(slog.LevelDebug) {
		return
	}
	FromContext(ctx, "").DebugContext(ctx, msg, args...)
}

// Trace is Debug one level down. It is called once per module and per task,
// so the level check comes before any attribute is built.
func Trace(ctx context.Context, msg string, args ...any) {
	if !Enabled(LevelTrace) {
		return
	}
	FromContext(ctx, "").Log(ctx, LevelTrace, msg, args...)
}

// V returns a logger that only logs if verbosity >= v.
// Usage: log.V(3).Info("cache lookup", "module", id)
func V(v int) *slog.Logger {
	if int(verbosity.Load()) >= v {
		return current.Load()
	}
	return Discard()
}

// With returns a logger with additional context.
func With(args ...any) *slog.Logger {
	return current.Load().With(args...)
}

// Component returns a logger tagged with component name.
func Component(name string) *slog.Logger {
	return current.Load().With("component", name)
}
