package compiler

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/albertocavalcante/modmake/internal/graph"
	"github.com/albertocavalcante/modmake/internal/pipeline"
	"github.com/albertocavalcante/modmake/pkg/module"
)

// Stats summarizes a compilation.
type Stats struct {
	Modules      int           `json:"modules"`
	Dependencies int           `json:"dependencies"`
	Blocks       int           `json:"blocks"`
	Errors       int           `json:"errors"`
	Warnings     int           `json:"warnings"`
	CacheHits    int64         `json:"cache_hits"`
	CacheMisses  int64         `json:"cache_misses"`
	Duration     time.Duration `json:"duration_ns"`
}

// Compilation is the outcome of one Compile call.
type Compilation struct {
	ID      int64
	Entries []string
	Graph   *graph.ModuleGraph

	Diagnostics []module.Diagnostic
	// FailedModules built with diagnostics or have unresolved dependencies.
	FailedModules []module.Identifier

	FileDependencies    []string
	ContextDependencies []string
	MissingDependencies []string
	BuildDependencies   []string

	OptimizeAnalyzeResults map[module.Identifier]module.AnalyzeResult

	Stats Stats
}

func newCompilation(id int64, entries []string, pctx *pipeline.Context) *Compilation {
	c := &Compilation{
		ID:                     id,
		Entries:                entries,
		Graph:                  pctx.Graph,
		Diagnostics:            pctx.Diagnostics,
		FailedModules:          pctx.FailedModules.Sorted(),
		FileDependencies:       pctx.FileDependencies.Sorted(),
		ContextDependencies:    pctx.ContextDependencies.Sorted(),
		MissingDependencies:    pctx.MissingDependencies.Sorted(),
		BuildDependencies:      pctx.BuildDependencies.Sorted(),
		OptimizeAnalyzeResults: pctx.OptimizeAnalyzeResults,
	}
	c.Stats.Modules = pctx.Graph.ModuleCount()
	c.Stats.Dependencies = pctx.Graph.DependencyCount()
	c.Stats.Blocks = pctx.Graph.BlockCount()
	for _, d := range c.Diagnostics {
		if d.IsError() {
			c.Stats.Errors++
		} else {
			c.Stats.Warnings++
		}
	}
	return c
}

// Errors returns the error-severity diagnostics.
func (c *Compilation) Errors() []module.Diagnostic {
	return c.filter(true)
}

// Warnings returns the warning-severity diagnostics.
func (c *Compilation) Warnings() []module.Diagnostic {
	return c.filter(false)
}

func (c *Compilation) filter(errs bool) []module.Diagnostic {
	var out []module.Diagnostic
	for _, d := range c.Diagnostics {
		if d.IsError() == errs {
			out = append(out, d)
		}
	}
	return out
}

// Err joins the error diagnostics, or returns nil when there are none.
func (c *Compilation) Err() error {
	var result *multierror.Error
	for _, d := range c.Errors() {
		result = multierror.Append(result, d)
	}
	return result.ErrorOrNil()
}

// WatchedFiles returns every path a change to which can affect the next
// compilation.
func (c *Compilation) WatchedFiles() []string {
	return append(c.SnapshotPaths(), c.MissingDependencies...)
}

// SnapshotPaths returns the paths expected to exist: file, context and
// build dependencies. Pair it with MissingDependencies when fingerprinting.
func (c *Compilation) SnapshotPaths() []string {
	out := make([]string, 0, len(c.FileDependencies)+len(c.ContextDependencies)+len(c.BuildDependencies)+len(c.MissingDependencies))
	out = append(out, c.FileDependencies...)
	out = append(out, c.ContextDependencies...)
	out = append(out, c.BuildDependencies...)
	return out
}
