// Package pipeline implements the make phase of a compilation: building
// modules, folding their results into the module graph and scheduling the
// modules they depend on.
//
// Async tasks (BuildTask, FactorizeTask) run concurrently and never touch
// Context. Sync tasks (BuildResultTask, ProcessDependenciesTask, AddTask)
// run one at a time with exclusive access to it.
package pipeline

import (
	"context"

	"github.com/albertocavalcante/modmake/internal/cache"
	"github.com/albertocavalcante/modmake/internal/graph"
	"github.com/albertocavalcante/modmake/internal/hooks"
	"github.com/albertocavalcante/modmake/internal/metrics"
	"github.com/albertocavalcante/modmake/internal/taskloop"
	"github.com/albertocavalcante/modmake/pkg/config"
	"github.com/albertocavalcante/modmake/pkg/module"
	"github.com/albertocavalcante/modmake/pkg/util"
)

// Task is a work item of the make phase.
type Task = taskloop.Task[Context]

// Context is the state shared by the sync tasks of one compilation.
type Context struct {
	Options  *config.Config
	Plugins  *hooks.PluginDriver
	Cache    cache.Cache
	Resolver module.Resolver
	Factory  module.Factory
	// CacheCounter and Metrics are optional.
	CacheCounter *cache.Counter
	Metrics      *metrics.Make

	Graph       *graph.ModuleGraph
	Diagnostics []module.Diagnostic
	// FailedModules holds modules that built but raised diagnostics, and
	// modules with a dependency that failed to resolve.
	FailedModules util.Set[module.Identifier]

	FileDependencies    util.Set[string]
	ContextDependencies util.Set[string]
	MissingDependencies util.Set[string]
	BuildDependencies   util.Set[string]

	// OptimizeAnalyzeResults is only filled when tree shaking is enabled.
	OptimizeAnalyzeResults map[module.Identifier]module.AnalyzeResult

	building util.Set[module.Identifier]
}

// NewContext returns a context over an empty graph.
func NewContext(opts *config.Config, plugins *hooks.PluginDriver, c cache.Cache, resolver module.Resolver, factory module.Factory) *Context {
	if c == nil {
		c = cache.Disabled{}
	}
	return &Context{
		Options:                opts,
		Plugins:                plugins,
		Cache:                  c,
		Resolver:               resolver,
		Factory:                factory,
		Graph:                  graph.New(),
		OptimizeAnalyzeResults: make(map[module.Identifier]module.AnalyzeResult),
	}
}

// Run drives tasks until the make phase is complete.
func (c *Context) Run(ctx context.Context, tasks []Task) error {
	return taskloop.Run(ctx, c, tasks, taskloop.WithParallelism(c.Options.Build.Parallelism))
}

// EntryTasks inserts the entry dependencies into the graph and returns the
// tasks that resolve them.
func (c *Context) EntryTasks(entries ...*module.EntryDependency) ([]Task, error) {
	tasks := make([]Task, 0, len(entries))
	for _, e := range entries {
		if err := c.Graph.AddDependency(e); err != nil {
			return nil, err
		}
		tasks = append(tasks, c.factorizeTask("", e.Context(), e))
	}
	return tasks, nil
}

func (c *Context) factorizeTask(origin module.Identifier, dir string, dep module.ModuleDependency) *FactorizeTask {
	return &FactorizeTask{
		Factory:       c.Factory,
		OriginModule:  origin,
		OriginContext: dir,
		Dependency:    dep,
	}
}

// BuildTask returns the task building m with this context's collaborators.
func (c *Context) BuildTask(m module.Module) *BuildTask {
	t := &BuildTask{
		Module:   m,
		Options:  c.Options,
		Resolver: c.Resolver,
		Plugins:  c.Plugins,
		Cache:    c.Cache,
	}
	if c.Options.ProfileEnabled() {
		t.CurrentProfile = module.NewProfile()
	}
	return t
}

// Building reports whether id has a build scheduled that has not been
// integrated yet.
func (c *Context) Building(id module.Identifier) bool {
	return c.building.Contains(id)
}
