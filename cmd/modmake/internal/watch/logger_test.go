package watch

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/modmake/internal/compiler"
)

func TestLogger_Ready(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf})

	logger.Ready(12, []string{"./index.js", "./admin.js"}, "/workspace")

	out := buf.String()
	assert.Contains(t, out, "watching 12 files in /workspace")
	assert.Contains(t, out, "entries: ./index.js, ./admin.js")
	assert.Contains(t, out, "ready")
}

func TestLogger_FileChanged(t *testing.T) {
	t.Run("verbose", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggerConfig{Writer: &buf, Verbose: true, NoColor: true})
		logger.FileChanged("/src/a.js", ChangeModified)
		assert.Contains(t, buf.String(), "~ /src/a.js")
	})

	t.Run("quiet", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(LoggerConfig{Writer: &buf})
		logger.FileChanged("/src/a.js", ChangeModified)
		assert.Empty(t, buf.String())
	})
}

func TestLogger_Rebuilding(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf})

	logger.Rebuilding([]string{"/src/a.js"}, 1)
	logger.Rebuilding([]string{"/src/a.js", "/src/b.js", "/src/c.js"}, 2)

	out := buf.String()
	assert.Contains(t, out, "change to /src/a.js")
	assert.Contains(t, out, "after 3 changes")
}

func TestLogger_Built(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf, NoColor: true})

	logger.Built(compiler.Stats{Modules: 4, CacheHits: 3, CacheMisses: 1, Warnings: 2, Duration: 15 * time.Millisecond})

	out := buf.String()
	assert.Contains(t, out, "✓ 4 modules (1 rebuilt, 3 cached), 0 errors, 2 warnings in 15ms")
}

func TestLogger_Stats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf, NoColor: true})

	logger.Built(compiler.Stats{Modules: 1})
	logger.Built(compiler.Stats{Modules: 1, Errors: 1})
	logger.Error(errors.New("oops"))

	stats := logger.Stats()
	assert.Equal(t, 2, stats.BuildCount)
	assert.Equal(t, 2, stats.ErrorCount)

	logger.Shutdown()
	assert.Contains(t, buf.String(), "shutting down (2 builds, 2 errors)")
}

func TestLogger_JSON(t *testing.T) {
	tests := []struct {
		name  string
		emit  func(*Logger)
		event string
		key   string
		want  any
	}{
		{
			name:  "ready",
			emit:  func(l *Logger) { l.Ready(100, nil, "/workspace") },
			event: "ready",
			key:   "files",
			want:  float64(100),
		},
		{
			name:  "file changed",
			emit:  func(l *Logger) { l.FileChanged("/src/a.js", ChangeDeleted) },
			event: "file_changed",
			key:   "change",
			want:  "-",
		},
		{
			name:  "built",
			emit:  func(l *Logger) { l.Built(compiler.Stats{Modules: 7, CacheHits: 6}) },
			event: "built",
			key:   "stats",
			want:  map[string]any{"modules": float64(7), "dependencies": float64(0), "blocks": float64(0), "errors": float64(0), "warnings": float64(0), "cache_hits": float64(6), "cache_misses": float64(0), "duration_ns": float64(0)},
		},
		{
			name:  "error",
			emit:  func(l *Logger) { l.Error(errors.New("something failed")) },
			event: "error",
			key:   "error",
			want:  "something failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.emit(NewLogger(LoggerConfig{Writer: &buf, JSON: true}))

			var event map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
			assert.Equal(t, tt.event, event["event"])
			assert.Equal(t, tt.want, event[tt.key])
		})
	}
}
