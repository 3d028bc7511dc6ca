// Package testutil provides fakes shared by package tests.
package testutil

import (
	"context"
	"sync/atomic"

	"github.com/albertocavalcante/modmake/pkg/module"
)

// Module is a scriptable module. Build records a call, replays Emit
// onto the module and returns whatever BuildFunc returns.
type Module struct {
	module.Base

	BuildFunc   func(ctx context.Context, bctx module.BuildContext) (*module.BuildResult, error)
	Emit        []module.Diagnostic

	builds atomic.Int32
}

var _ module.Module = (*Module)(nil)

// NewModule creates a fake module with identifier id.
func NewModule(id string) *Module {
	return &Module{Base: module.NewBase(module.Identifier(id), "/src", module.SourceMapNone)}
}

// Build implements module.Module.
func (m *Module) Build(ctx context.Context, bctx module.BuildContext) (*module.BuildResult, error) {
	m.builds.Add(1)
	m.ResetBuildState()
	for _, d := range m.Emit {
		m.AddDiagnostic(d)
	}
	if m.BuildFunc == nil {
		return &module.BuildResult{}, nil
	}
	return m.BuildFunc(ctx, bctx)
}

// Builds returns how many times Build ran.
func (m *Module) Builds() int { return int(m.builds.Load()) }

// Returning makes Build return res.
func (m *Module) Returning(res *module.BuildResult) *Module {
	m.BuildFunc = func(context.Context, module.BuildContext) (*module.BuildResult, error) {
		return res.Clone(), nil
	}
	return m
}

// Dep creates an import dependency on request.
func Dep(request string) *module.ImportDependency {
	return module.NewImportDependency(request, "esm import")
}

// Block creates a block owned by owner holding deps and children.
func Block(owner, key string, deps []module.Dependency, children ...*module.Block) *module.Block {
	b := module.NewBlock(module.Identifier(owner), key)
	for _, d := range deps {
		b.AddDependency(d)
	}
	for _, c := range children {
		b.AddBlock(c)
	}
	return b
}
