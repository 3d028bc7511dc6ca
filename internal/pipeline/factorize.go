package pipeline

import (
	"context"
	"errors"

	"github.com/albertocavalcante/modmake/pkg/module"
)

// FactorizeTask creates the module a dependency refers to.
type FactorizeTask struct {
	Factory module.Factory
	// OriginModule is empty for entries.
	OriginModule  module.Identifier
	OriginContext string
	Dependency    module.ModuleDependency
}

func (t *FactorizeTask) Name() string { return "factorize " + t.Dependency.Request() }

// RunAsync implements taskloop.AsyncTask. Resolution failures are not
// terminal; they are handed to AddTask, which records them as diagnostics.
func (t *FactorizeTask) RunAsync(ctx context.Context) ([]Task, error) {
	m, err := t.Factory.Create(ctx, module.FactorizeRequest{
		Dependency: t.Dependency,
		Issuer:     t.OriginModule,
		Context:    t.OriginContext,
	})
	add := &AddTask{
		Module:       m,
		OriginModule: t.OriginModule,
		Dependency:   t.Dependency,
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		add.Module = nil
		add.Err = err
		var re *module.ResolveError
		if errors.As(err, &re) {
			add.MissingDependencies = re.Tried
		}
	}
	return []Task{add}, nil
}
