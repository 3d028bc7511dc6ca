package pipeline

import (
	"context"

	"github.com/albertocavalcante/modmake/pkg/module"
)

// ProcessDependenciesTask schedules resolution of the dependencies a module
// build discovered.
type ProcessDependenciesTask struct {
	Dependencies             []module.DependencyID
	OriginalModuleIdentifier module.Identifier
}

func (t *ProcessDependenciesTask) Name() string {
	return "process dependencies " + string(t.OriginalModuleIdentifier)
}

// RunSync implements taskloop.SyncTask. Dependencies that do not refer to
// another module are skipped.
func (t *ProcessDependenciesTask) RunSync(_ context.Context, c *Context) ([]Task, error) {
	origin, ok := c.Graph.Module(t.OriginalModuleIdentifier)
	if !ok {
		return nil, nil
	}
	var tasks []Task
	for _, id := range t.Dependencies {
		dep, ok := c.Graph.Dependency(id)
		if !ok {
			continue
		}
		md, ok := dep.(module.ModuleDependency)
		if !ok {
			continue
		}
		tasks = append(tasks, c.factorizeTask(t.OriginalModuleIdentifier, origin.Context(), md))
	}
	return tasks, nil
}
