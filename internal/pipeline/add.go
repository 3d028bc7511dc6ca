package pipeline

import (
	"context"
	"errors"

	"github.com/albertocavalcante/modmake/internal/log"
	"github.com/albertocavalcante/modmake/pkg/module"
)

// AddTask connects a factorized module to the dependency that led to it
// and schedules its build.
type AddTask struct {
	// Module is nil when factorizing failed.
	Module       module.Module
	OriginModule module.Identifier
	Dependency   module.ModuleDependency

	Err                 error
	MissingDependencies []string
}

func (t *AddTask) Name() string { return "add " + t.Dependency.Request() }

// RunSync implements taskloop.SyncTask. A module already in the graph or
// already being built is connected but not built again.
func (t *AddTask) RunSync(ctx context.Context, c *Context) ([]Task, error) {
	if t.Err != nil {
		title := "ModuleFactoryError"
		var re *module.ResolveError
		if errors.As(t.Err, &re) {
			title = "ModuleNotFoundError"
		}
		d := module.Errorf(title, "%v", t.Err)
		d.Module = t.OriginModule
		if l, ok := t.Dependency.(interface{ Location() string }); ok {
			d.Loc = l.Location()
		}
		c.Diagnostics = append(c.Diagnostics, d)
		if t.OriginModule != "" {
			c.FailedModules.Add(t.OriginModule)
		}
		c.MissingDependencies.AddAll(t.MissingDependencies)
		log.FromContext(ctx, "make").Debug("unresolved dependency",
			"request", t.Dependency.Request(), "issuer", t.OriginModule, "error", t.Err)
		return nil, nil
	}

	id := t.Module.Identifier()
	c.Graph.SetResolvedModule(t.OriginModule, t.Dependency.ID(), id)

	if _, ok := c.Graph.Module(id); ok || c.building.Contains(id) {
		return nil, nil
	}
	c.building.Add(id)
	return []Task{c.BuildTask(t.Module)}, nil
}
