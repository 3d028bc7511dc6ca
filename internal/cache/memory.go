package cache

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/albertocavalcante/modmake/internal/log"
	"github.com/albertocavalcante/modmake/internal/snapshot"
	"github.com/albertocavalcante/modmake/pkg/module"
)

// DefaultMaxEntries bounds a Memory cache created with a non-positive size.
const DefaultMaxEntries = 4096

type entry struct {
	output *module.BuildOutput
	// deps fingerprints the paths the build read or probed.
	deps *snapshot.Index
}

// Memory is an in-process cache. Entries are evicted least recently used
// first and stay valid while the files they were built from are unchanged
// and the paths they found missing are still missing.
type Memory struct {
	entries *lru.Cache
	group   singleflight.Group
	hashes  *xsync.MapOf[string, string]
}

var _ Cache = (*Memory)(nil)

// NewMemory creates a cache holding at most maxEntries outputs.
func NewMemory(maxEntries int) (*Memory, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New(maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create build cache: %w", err)
	}
	return &Memory{
		entries: entries,
		hashes:  xsync.NewMapOf[string, string](),
	}, nil
}

// UseCache implements Cache. Concurrent calls for the same identifier share
// one computation; callers that joined an in-flight computation are reported
// as served from the cache. Every caller receives its own copy of the output.
func (c *Memory) UseCache(ctx context.Context, m module.Module, compute ComputeFunc) (*module.BuildOutput, bool, error) {
	id := m.Identifier()
	logger := log.FromContext(ctx, "cache")

	if out, ok := c.lookup(ctx, id); ok {
		logger.Debug("cache hit", "module", id)
		return out.Clone(), true, nil
	}

	return c.share(ctx, m, compute)
}

// share runs compute for m under the singleflight key of its identifier.
// The entry is looked up again under the key: a build in flight during the
// caller's lookup may have stored it since.
func (c *Memory) share(ctx context.Context, m module.Module, compute ComputeFunc) (*module.BuildOutput, bool, error) {
	id := m.Identifier()
	computed := false
	v, err, shared := c.group.Do(string(id), func() (any, error) {
		if out, ok := c.lookup(ctx, id); ok {
			return out, nil
		}
		computed = true
		out, err := compute(ctx, m)
		if err != nil {
			return nil, err
		}
		c.store(ctx, id, out)
		return out, nil
	})
	if err != nil {
		return nil, false, err
	}
	if shared && !computed {
		log.FromContext(ctx, "cache").Debug("joined in-flight build", "module", id)
	}
	return v.(*module.BuildOutput).Clone(), !computed, nil
}

func (c *Memory) lookup(ctx context.Context, id module.Identifier) (*module.BuildOutput, bool) {
	v, ok := c.entries.Get(id)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	cs, err := snapshot.Check(ctx, e.deps)
	if err != nil || !cs.IsEmpty() {
		log.Trace(ctx, "cache entry stale", "module", id, "changes", cs.TotalChanges())
		c.entries.Remove(id)
		return nil, false
	}
	return e.output, true
}

// store snapshots the output's dependencies. Outputs whose dependencies
// cannot be fingerprinted are not cached.
func (c *Memory) store(ctx context.Context, id module.Identifier, out *module.BuildOutput) {
	if out == nil || out.Result == nil {
		return
	}
	info := out.Result.BuildInfo
	files := slices.Concat(info.FileDependencies, info.ContextDependencies, info.BuildDependencies)
	deps, err := snapshot.Take(ctx, files, info.MissingDependencies)
	if err != nil {
		log.Debug(ctx, "not caching build output", "module", id, "error", err)
		return
	}
	for _, path := range files {
		c.hashes.Delete(path)
	}
	c.entries.Add(id, &entry{output: out.Clone(), deps: deps})
}

// Invalidate drops every entry that depends on one of paths.
func (c *Memory) Invalidate(paths ...string) int {
	dropped := 0
	for _, key := range c.entries.Keys() {
		v, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		e := v.(*entry)
		for _, p := range paths {
			if _, hit := e.deps.Get(p); hit {
				c.entries.Remove(key)
				dropped++
				break
			}
		}
	}
	for _, p := range paths {
		c.hashes.Delete(p)
	}
	return dropped
}

// Forget drops the entries of the given modules.
func (c *Memory) Forget(ids ...module.Identifier) {
	for _, id := range ids {
		c.entries.Remove(id)
	}
}

// Len returns the number of cached outputs.
func (c *Memory) Len() int { return c.entries.Len() }

// Purge drops every entry.
func (c *Memory) Purge() {
	c.entries.Purge()
	c.hashes.Clear()
}

// FileHash returns the content hash of path, memoized until the path is
// invalidated or rebuilt.
func (c *Memory) FileHash(path string) (string, error) {
	if h, ok := c.hashes.Load(path); ok {
		return h, nil
	}
	h, err := snapshot.HashFile(path)
	if err != nil {
		return "", err
	}
	c.hashes.Store(path, h)
	return h, nil
}
