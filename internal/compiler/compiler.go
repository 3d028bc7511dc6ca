// Package compiler runs compilations: it resolves entries, drives the make
// phase to completion and reports what was built.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/albertocavalcante/modmake/internal/cache"
	"github.com/albertocavalcante/modmake/internal/hooks"
	"github.com/albertocavalcante/modmake/internal/log"
	"github.com/albertocavalcante/modmake/internal/metrics"
	"github.com/albertocavalcante/modmake/internal/pipeline"
	"github.com/albertocavalcante/modmake/internal/resolve"
	"github.com/albertocavalcante/modmake/internal/source"
	"github.com/albertocavalcante/modmake/pkg/config"
	"github.com/albertocavalcante/modmake/pkg/module"
)

// ErrNoEntries is returned by Compile when called without entries.
var ErrNoEntries = errors.New("no entries to compile")

// Compiler holds everything that outlives a single compilation: options,
// plugins, the build cache and the hit/miss counter.
type Compiler struct {
	options  *config.Config
	plugins  *hooks.PluginDriver
	cache    cache.Cache
	counter  *cache.Counter
	resolver *resolve.Resolver
	factory  module.Factory

	compilations atomic.Int64
}

type settings struct {
	plugins []hooks.Plugin
	cache   cache.Cache
	factory module.Factory
}

// Option configures a Compiler.
type Option func(*settings)

// WithPlugins applies plugins to the compiler's hooks, in order.
func WithPlugins(plugins ...hooks.Plugin) Option {
	return func(s *settings) {
		s.plugins = append(s.plugins, plugins...)
	}
}

// WithCache replaces the cache chosen from the configuration.
func WithCache(c cache.Cache) Option {
	return func(s *settings) {
		s.cache = c
	}
}

// WithFactory replaces the default module factory.
func WithFactory(f module.Factory) Option {
	return func(s *settings) {
		s.factory = f
	}
}

// New creates a compiler for cfg.
func New(cfg *config.Config, opts ...Option) (*Compiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	plugins, err := hooks.NewPluginDriver(s.plugins...)
	if err != nil {
		return nil, err
	}

	c := s.cache
	if c == nil {
		if cfg.CacheEnabled() {
			mem, err := cache.NewMemory(cfg.Cache.MaxEntries)
			if err != nil {
				return nil, err
			}
			c = mem
		} else {
			c = cache.Disabled{}
		}
	}

	resolver := resolve.New(cfg.Resolve)
	factory := s.factory
	if factory == nil {
		factory = &source.Factory{
			Resolver:  resolver,
			Registry:  source.NewRegistry(source.Parser(cfg.Build.Parser)),
			SourceMap: module.ParseSourceMapKind(cfg.Build.SourceMap),
		}
	}

	return &Compiler{
		options:  cfg,
		plugins:  plugins,
		cache:    c,
		counter:  cache.NewCounter().Export(metrics.CacheHits(), metrics.CacheMisses()),
		resolver: resolver,
		factory:  factory,
	}, nil
}

// Options returns the compiler configuration.
func (c *Compiler) Options() *config.Config { return c.options }

// Cache returns the build cache shared by all compilations.
func (c *Compiler) Cache() cache.Cache { return c.cache }

// Counter returns the cumulative cache hit/miss counter.
func (c *Compiler) Counter() *cache.Counter { return c.counter }

// Invalidate drops cached builds depending on any of paths.
func (c *Compiler) Invalidate(paths ...string) int {
	if mem, ok := c.cache.(*cache.Memory); ok {
		return mem.Invalidate(paths...)
	}
	return 0
}

// Compile builds every module reachable from entries, which are requests
// resolved against the configured context directory. A non-nil error means
// the make phase aborted; diagnostics are reported on the Compilation.
func (c *Compiler) Compile(ctx context.Context, entries ...string) (*Compilation, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	id := c.compilations.Add(1)
	logger := log.Component("compiler").With("compilation", id)
	ctx = log.WithLogger(ctx, logger)
	c.resolver.Clear()

	pctx := pipeline.NewContext(c.options, c.plugins, c.cache, c.resolver, c.factory)
	pctx.CacheCounter = c.counter
	pctx.Metrics = metrics.DefaultMake()

	deps := make([]*module.EntryDependency, len(entries))
	for i, e := range entries {
		deps[i] = module.NewEntryDependency(e, c.options.Build.Context)
	}
	tasks, err := pctx.EntryTasks(deps...)
	if err != nil {
		return nil, err
	}

	hits, misses := c.counter.Hits(), c.counter.Misses()
	start := time.Now()
	logger.Info("compilation started", "entries", entries)

	runErr := pctx.Run(ctx, tasks)
	elapsed := time.Since(start)

	comp := newCompilation(id, entries, pctx)
	comp.Stats.CacheHits = c.counter.Hits() - hits
	comp.Stats.CacheMisses = c.counter.Misses() - misses
	comp.Stats.Duration = elapsed

	// Modules that built with diagnostics are rebuilt next time.
	if mem, ok := c.cache.(*cache.Memory); ok {
		mem.Forget(comp.FailedModules...)
	}

	status := "ok"
	switch {
	case runErr != nil:
		status = "aborted"
	case comp.Err() != nil:
		status = "failed"
	}
	metrics.CompilationDurationHistogram.WithLabelValues(status).Observe(elapsed.Seconds())

	if runErr != nil {
		logger.Error("compilation aborted", "error", runErr, "duration", elapsed)
		return comp, runErr
	}
	logger.Info("compilation finished",
		"modules", comp.Stats.Modules,
		"errors", comp.Stats.Errors,
		"warnings", comp.Stats.Warnings,
		"cache_hits", comp.Stats.CacheHits,
		"duration", elapsed)
	return comp, nil
}
