package pipeline

import (
	"context"

	"github.com/albertocavalcante/modmake/internal/cache"
	"github.com/albertocavalcante/modmake/internal/hooks"
	"github.com/albertocavalcante/modmake/internal/log"
	"github.com/albertocavalcante/modmake/pkg/config"
	"github.com/albertocavalcante/modmake/pkg/module"
)

// BuildTask builds one module, consulting the cache first.
type BuildTask struct {
	Module module.Module
	// CurrentProfile is nil unless profiling is enabled.
	CurrentProfile *module.Profile

	Options  *config.Config
	Resolver module.Resolver
	Plugins  *hooks.PluginDriver
	Cache    cache.Cache
}

func (t *BuildTask) Name() string { return "build " + string(t.Module.Identifier()) }

// RunAsync implements taskloop.AsyncTask. On success it returns a single
// BuildResultTask. Hook and build failures are returned as *BuildError and
// no follow-up is produced.
func (t *BuildTask) RunAsync(ctx context.Context) ([]Task, error) {
	m := t.Module
	compilation := t.Plugins.Compilation

	if t.CurrentProfile != nil {
		t.CurrentProfile.MarkBuildingStart()
	}

	out, fromCache, err := t.Cache.UseCache(ctx, m, func(ctx context.Context, m module.Module) (*module.BuildOutput, error) {
		if err := compilation.BuildModule.Call(ctx, m); err != nil {
			return nil, err
		}

		result, buildErr := m.Build(ctx, module.BuildContext{
			Options:   t.Options,
			Resolver:  t.Resolver,
			Cache:     t.Cache,
			SourceMap: m.SourceMapKind(),
			Module:    m.Identifier(),
			Context:   m.Context(),
		})

		if err := compilation.SucceedModule.Call(ctx, m); err != nil {
			return nil, err
		}
		if buildErr != nil {
			return nil, buildErr
		}

		diagnostics := m.Diagnostics()
		for i := range diagnostics {
			diagnostics[i] = diagnostics[i].WithModule(m.Identifier())
		}
		return &module.BuildOutput{Result: result, Diagnostics: diagnostics}, nil
	})
	if err != nil {
		return nil, &BuildError{Module: m.Identifier(), Err: err}
	}

	if fromCache {
		if err := compilation.StillValidModule.Call(ctx, m); err != nil {
			return nil, &BuildError{Module: m.Identifier(), Err: err}
		}
	}

	if t.CurrentProfile != nil {
		t.CurrentProfile.MarkBuildingEnd()
	}

	log.FromContext(ctx, "make").Debug("build finished", "module", m.Identifier(), "cached", fromCache)

	result := out.Result
	if result == nil {
		result = &module.BuildResult{}
	}
	return []Task{&BuildResultTask{
		Module:         m,
		Result:         result,
		Diagnostics:    out.Diagnostics,
		CurrentProfile: t.CurrentProfile,
		FromCache:      fromCache,
	}}, nil
}
