package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/modmake/internal/testutil"
	"github.com/albertocavalcante/modmake/pkg/module"
)

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.Zero(t, g.ModuleCount())
	assert.Zero(t, g.DependencyCount())
	assert.Zero(t, g.BlockCount())
	assert.Empty(t, g.Modules())
}

func TestAddModule(t *testing.T) {
	g := New()
	require.NoError(t, g.AddModule(testutil.NewModule("./b.js")))
	require.NoError(t, g.AddModule(testutil.NewModule("./a.js")))

	err := g.AddModule(testutil.NewModule("./a.js"))
	assert.ErrorIs(t, err, ErrModuleExists)

	mods := g.Modules()
	require.Len(t, mods, 2)
	assert.Equal(t, module.Identifier("./a.js"), mods[0].Identifier())
	assert.Equal(t, module.Identifier("./b.js"), mods[1].Identifier())

	m, ok := g.Module("./b.js")
	require.True(t, ok)
	assert.Equal(t, module.Identifier("./b.js"), m.Identifier())
}

func TestDependenciesAndBlocks(t *testing.T) {
	g := New()
	d := testutil.Dep("./x")
	require.NoError(t, g.AddDependency(d))
	assert.ErrorIs(t, g.AddDependency(d), ErrDependencyExists)

	got, ok := g.Dependency(d.ID())
	require.True(t, ok)
	assert.Same(t, d, got)

	b := testutil.Block("./a.js", "0", nil)
	require.NoError(t, g.AddBlock(b))
	assert.ErrorIs(t, g.AddBlock(b), ErrBlockExists)

	gotBlock, ok := g.Block(b.ID())
	require.True(t, ok)
	assert.Same(t, b, gotBlock)
}

func TestSetParentsOnce(t *testing.T) {
	g := New()
	id := module.NewDependencyID()
	p := DependencyParents{Block: "./a.js|0", Module: "./a.js"}

	require.NoError(t, g.SetParents(id, p))
	assert.ErrorIs(t, g.SetParents(id, DependencyParents{Module: "./b.js"}), ErrParentsAlreadySet)

	got, ok := g.Parents(id)
	require.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = g.Parents(module.NewDependencyID())
	assert.False(t, ok)
}

func TestOptimizationBailoutsAppend(t *testing.T) {
	g := New()
	g.AppendOptimizationBailouts("./a.js", "first")
	g.AppendOptimizationBailouts("./a.js")
	g.AppendOptimizationBailouts("./a.js", "second", "third")

	assert.Equal(t, []string{"first", "second", "third"}, g.OptimizationBailouts("./a.js"))
	assert.Empty(t, g.OptimizationBailouts("./b.js"))
}

func TestGraphModuleOrCreate(t *testing.T) {
	g := New()
	_, ok := g.GraphModule("./a.js")
	assert.False(t, ok)

	gm := g.GraphModuleOrCreate("./a.js")
	gm.AllDependencies = []module.DependencyID{1, 2}
	assert.Same(t, gm, g.GraphModuleOrCreate("./a.js"))

	got, ok := g.GraphModule("./a.js")
	require.True(t, ok)
	assert.Equal(t, module.Identifier("./a.js"), got.Module)
}

func TestSetResolvedModule(t *testing.T) {
	g := New()
	entry := module.NewDependencyID()
	g.SetResolvedModule("", entry, "./index.js")

	dep := module.NewDependencyID()
	g.SetResolvedModule("./index.js", dep, "./a.js")
	other := module.NewDependencyID()
	g.SetResolvedModule("./b.js", other, "./a.js")

	target, ok := g.ResolvedModule(dep)
	require.True(t, ok)
	assert.Equal(t, module.Identifier("./a.js"), target)

	index, _ := g.GraphModule("./index.js")
	assert.Empty(t, index.Issuer)
	assert.Equal(t, []module.DependencyID{entry}, index.Incoming)
	assert.Equal(t, []module.DependencyID{dep}, index.Outgoing)

	a, _ := g.GraphModule("./a.js")
	assert.Equal(t, module.Identifier("./index.js"), a.Issuer, "first issuer wins")
	assert.Equal(t, []module.DependencyID{dep, other}, a.Incoming)
}
