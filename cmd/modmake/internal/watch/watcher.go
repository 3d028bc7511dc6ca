package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/modmake/internal/compiler"
	"github.com/albertocavalcante/modmake/internal/snapshot"
	"github.com/albertocavalcante/modmake/pkg/util"
)

// Builder compiles entries and drops cached builds that depend on changed
// paths. *compiler.Compiler implements it.
type Builder interface {
	Compile(ctx context.Context, entries ...string) (*compiler.Compilation, error)
	Invalidate(paths ...string) int
}

// Config configures the watcher.
type Config struct {
	Root     string
	Entries  []string
	Debounce int // debounce window in milliseconds
	Verbose  bool
	NoColor  bool
	JSON     bool
	Writer   io.Writer
}

// Watcher recompiles its entries whenever a file the last compilation
// depended on changes.
type Watcher struct {
	config    Config
	builder   Builder
	fsWatcher *fsnotify.Watcher
	tracker   *snapshot.Tracker
	debouncer *Debouncer
	logger    *Logger

	// buildMu prevents concurrent compilations
	buildMu sync.Mutex

	stateMu  sync.Mutex
	files    util.Set[string]
	contexts []string
	dirs     util.Set[string]
}

// New creates a new watcher with the given configuration.
func New(cfg Config, builder Builder) (*Watcher, error) {
	if builder == nil {
		return nil, errors.New("watch: nil builder")
	}
	if len(cfg.Entries) == 0 {
		return nil, compiler.ErrNoEntries
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	logger := NewLogger(LoggerConfig{
		Writer:  cfg.Writer,
		Verbose: cfg.Verbose,
		NoColor: cfg.NoColor,
		JSON:    cfg.JSON,
	})

	return &Watcher{
		config:    cfg,
		builder:   builder,
		fsWatcher: fsWatcher,
		tracker:   snapshot.NewTracker(cfg.Root),
		logger:    logger,
	}, nil
}

// Logger returns the watch output logger.
func (w *Watcher) Logger() *Logger { return w.logger }

// Run compiles once and then recompiles on every relevant change. It blocks
// until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	debounceWindow := time.Duration(w.config.Debounce) * time.Millisecond
	if debounceWindow <= 0 {
		debounceWindow = 200 * time.Millisecond
	}
	w.debouncer = NewDebouncer(debounceWindow, func(paths []string) {
		w.rebuild(ctx, paths)
	})
	defer w.debouncer.Stop()

	if err := w.addRecursive(w.config.Root); err != nil {
		return fmt.Errorf("failed to watch workspace: %w", err)
	}

	w.rebuild(ctx, nil)
	w.logger.Ready(w.TrackedFileCount(), w.config.Entries, w.config.Root)

	for {
		select {
		case <-ctx.Done():
			w.logger.Shutdown()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err)
		}
	}
}

// TrackedFileCount returns the number of paths the last compilation
// depended on.
func (w *Watcher) TrackedFileCount() int {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return w.files.Len()
}

func ignoredDir(name string) bool {
	return name == "node_modules" || (len(name) > 1 && strings.HasPrefix(name, "."))
}

// addRecursive adds a directory and all subdirectories to the watcher.
// Dependencies inside ignored directories are watched individually once a
// compilation reports them.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				if w.config.Verbose {
					w.logger.Error(fmt.Errorf("permission denied: %s", path))
				}
				return nil
			}
			w.logger.Error(fmt.Errorf("walk error at %s: %w", path, err))
			return nil
		}

		if !d.IsDir() {
			return nil
		}
		if path != root && ignoredDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.addDir(path)
	})
}

func (w *Watcher) addDir(dir string) error {
	w.stateMu.Lock()
	seen := w.dirs.Contains(dir)
	w.dirs.Add(dir)
	w.stateMu.Unlock()
	if seen {
		return nil
	}

	if err := w.fsWatcher.Add(dir); err != nil {
		if isWatchLimitError(err) {
			return fmt.Errorf("%w for %s: %w\n"+
				"Increase limit with: sudo sysctl fs.inotify.max_user_watches=524288", ErrWatchLimitReached, dir, err)
		}
		if w.config.Verbose {
			w.logger.Error(fmt.Errorf("failed to watch %s: %w", dir, err))
		}
	}
	return nil
}

// isWatchLimitError checks if an error is due to inotify watch limits.
func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "no space left on device") ||
		strings.Contains(errStr, "too many open files")
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if ignoredDir(filepath.Base(path)) {
				return
			}
			if err := w.addRecursive(path); err != nil {
				w.logger.Error(fmt.Errorf("failed to watch new directory %s: %w", path, err))
			}
			if !w.relevant(path) {
				return
			}
		}
	}

	var changeType ChangeType
	switch {
	case event.Has(fsnotify.Create):
		changeType = ChangeAdded
	case event.Has(fsnotify.Write):
		changeType = ChangeModified
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		changeType = ChangeDeleted
	default:
		return
	}

	if !w.relevant(path) {
		return
	}

	w.logger.FileChanged(path, changeType)
	w.debouncer.Add(path)
}

// relevant reports whether a change to path can affect the next compilation.
// Before the first compilation every path is relevant.
func (w *Watcher) relevant(path string) bool {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()

	if w.files.Len() == 0 {
		return true
	}
	if w.files.Contains(path) {
		return true
	}
	for _, dir := range w.contexts {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// rebuild invalidates the changed paths and recompiles.
func (w *Watcher) rebuild(ctx context.Context, paths []string) {
	w.buildMu.Lock()
	defer w.buildMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	if len(paths) > 0 {
		slices.Sort(paths)
		n := w.builder.Invalidate(paths...)
		w.logger.Rebuilding(paths, n)
	}

	comp, err := w.builder.Compile(ctx, w.config.Entries...)
	if err != nil {
		w.logger.Error(fmt.Errorf("compilation failed: %w", err))
	} else {
		w.logger.Built(comp.Stats)
		if w.config.Verbose {
			for _, d := range comp.Errors() {
				w.logger.printf("  %s\n", d.Error())
			}
		}
	}
	if comp == nil {
		return
	}

	w.track(comp)

	if err := w.tracker.Refresh(ctx, comp.SnapshotPaths(), comp.MissingDependencies); err != nil {
		w.logger.Error(fmt.Errorf("failed to update state: %w", err))
	}
}

// track replaces the watched path set with the dependencies of comp and
// watches the directories holding them.
func (w *Watcher) track(comp *compiler.Compilation) {
	var files util.Set[string]
	files.AddAll(comp.FileDependencies)
	files.AddAll(comp.MissingDependencies)
	files.AddAll(comp.BuildDependencies)

	w.stateMu.Lock()
	w.files = files
	w.contexts = slices.Clone(comp.ContextDependencies)
	w.stateMu.Unlock()

	for _, p := range comp.WatchedFiles() {
		if dir := existingParent(p); dir != "" {
			if err := w.addDir(dir); err != nil {
				w.logger.Error(err)
			}
		}
	}
}

// existingParent returns the closest existing directory above path.
func existingParent(path string) string {
	dir := filepath.Dir(path)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Close closes the watcher and releases resources.
func (w *Watcher) Close() error {
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

// ErrWatchLimitReached is returned when the OS watch limit is exceeded.
var ErrWatchLimitReached = errors.New("filesystem watch limit reached")
