// Package registry maps file extensions to module kinds.
// It allows the module factory to create the right module variant for a
// resolved path, and lets callers add variants for further extensions.
package registry

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/albertocavalcante/modmake/pkg/module"
	"github.com/albertocavalcante/modmake/pkg/util"
)

// ModuleFactory creates a module for the resource at path. context is the
// directory requests issued by the module are resolved from.
type ModuleFactory func(path, context string, sourceMap module.SourceMapKind) module.Module

// Registry maps extensions, including the leading dot, to module factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ModuleFactory
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{factories: make(map[string]ModuleFactory)}
}

// Register maps every extension in exts to factory, replacing any earlier
// registration. Extensions are case-insensitive.
func (r *Registry) Register(factory ModuleFactory, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.factories[strings.ToLower(ext)] = factory
	}
}

// Lookup returns the factory registered for the extension of path.
func (r *Registry) Lookup(path string) (ModuleFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[strings.ToLower(filepath.Ext(path))]
	return f, ok
}

// IsRegistered reports whether ext has a factory.
func (r *Registry) IsRegistered(ext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(ext)]
	return ok
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return util.SortedKeys(r.factories)
}
