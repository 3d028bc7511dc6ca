// Package cache memoizes module build outputs.
//
// A Cache answers "give me a valid build output for this module, or compute
// one", and reports whether the answer was served without computing. At most
// one computation per module identifier is in flight at any time.
package cache

import (
	"context"

	"github.com/albertocavalcante/modmake/internal/snapshot"
	"github.com/albertocavalcante/modmake/pkg/module"
)

// ComputeFunc builds m on a cache miss.
type ComputeFunc func(ctx context.Context, m module.Module) (*module.BuildOutput, error)

// Cache is the build cache consulted by the build step.
type Cache interface {
	module.Hasher

	// UseCache returns a valid output for m, calling compute only when no
	// valid entry exists. The bool reports whether the output was served
	// from the cache rather than computed by this call.
	UseCache(ctx context.Context, m module.Module, compute ComputeFunc) (*module.BuildOutput, bool, error)
}

// Disabled never stores anything.
type Disabled struct{}

var _ Cache = Disabled{}

// UseCache always computes.
func (Disabled) UseCache(ctx context.Context, m module.Module, compute ComputeFunc) (*module.BuildOutput, bool, error) {
	out, err := compute(ctx, m)
	return out, false, err
}

// FileHash hashes path without memoizing.
func (Disabled) FileHash(path string) (string, error) {
	return snapshot.HashFile(path)
}
