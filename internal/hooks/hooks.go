// Package hooks implements the plugin hook bus: ordered, named extension
// points that plugins tap into and the compilation calls at fixed moments.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/albertocavalcante/modmake/pkg/module"
)

// ModuleFunc is a tap on a module hook. It may mutate the module and may
// fail, which aborts the pipeline for that module.
type ModuleFunc func(ctx context.Context, m module.Module) error

// HookError reports which tap of which hook failed.
type HookError struct {
	Hook string
	Tap  string
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %s: tap %s: %v", e.Hook, e.Tap, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

type tap struct {
	name string
	fn   ModuleFunc
}

// ModuleHook is an async-series hook over a module: taps run in
// registration order and the first failure stops the call.
type ModuleHook struct {
	name string

	mu   sync.RWMutex
	taps []tap
}

// NewModuleHook creates an empty hook.
func NewModuleHook(name string) *ModuleHook {
	return &ModuleHook{name: name}
}

// Name returns the hook name.
func (h *ModuleHook) Name() string { return h.name }

// Tap registers fn under name. Taps run in registration order.
func (h *ModuleHook) Tap(name string, fn ModuleFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.taps = append(h.taps, tap{name: name, fn: fn})
}

// Len returns the number of registered taps.
func (h *ModuleHook) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.taps)
}

// Call runs every tap against m, stopping at the first error.
func (h *ModuleHook) Call(ctx context.Context, m module.Module) error {
	h.mu.RLock()
	taps := h.taps
	h.mu.RUnlock()

	for _, t := range taps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.fn(ctx, m); err != nil {
			return &HookError{Hook: h.name, Tap: t.name, Err: err}
		}
	}
	return nil
}

// CompilationHooks are the module-build extension points.
type CompilationHooks struct {
	// BuildModule runs before a module is built.
	BuildModule *ModuleHook
	// SucceedModule runs after a module's build operation returned.
	SucceedModule *ModuleHook
	// StillValidModule runs instead of the two above when the cache
	// served the module.
	StillValidModule *ModuleHook
}

// Plugin taps into a PluginDriver.
type Plugin interface {
	Name() string
	Apply(d *PluginDriver) error
}

// PluginDriver owns the hooks and is shared by every build.
type PluginDriver struct {
	Compilation CompilationHooks
	plugins     []string
}

// NewPluginDriver creates a driver and applies plugins in order.
func NewPluginDriver(plugins ...Plugin) (*PluginDriver, error) {
	d := &PluginDriver{
		Compilation: CompilationHooks{
			BuildModule:      NewModuleHook("buildModule"),
			SucceedModule:    NewModuleHook("succeedModule"),
			StillValidModule: NewModuleHook("stillValidModule"),
		},
	}
	for _, p := range plugins {
		if err := p.Apply(d); err != nil {
			return nil, fmt.Errorf("failed to apply plugin %s: %w", p.Name(), err)
		}
		d.plugins = append(d.plugins, p.Name())
	}
	return d, nil
}

// Plugins returns the names of applied plugins in order.
func (d *PluginDriver) Plugins() []string { return d.plugins }
