// Package graph holds the module graph a compilation builds up.
//
// The graph is an arena keyed by stable ids: it owns every module,
// dependency and block once they are inserted, together with the
// parent-linkage records tying each dependency to the block and module that
// contain it.
//
// A ModuleGraph is not safe for concurrent use. During a compilation it is
// only touched from sync tasks, which the task loop runs one at a time on a
// single goroutine.
package graph

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/albertocavalcante/modmake/pkg/module"
)

var (
	// ErrModuleExists is returned when a module identifier is inserted twice.
	ErrModuleExists = errors.New("module already in graph")
	// ErrDependencyExists is returned when a dependency id is inserted twice.
	ErrDependencyExists = errors.New("dependency already in graph")
	// ErrBlockExists is returned when a block id is inserted twice.
	ErrBlockExists = errors.New("block already in graph")
	// ErrParentsAlreadySet is returned when a dependency is linked twice.
	ErrParentsAlreadySet = errors.New("dependency parents already set")
)

// DependencyParents links a dependency to what contains it.
type DependencyParents struct {
	// Block is empty when the dependency sits directly on the module.
	Block  module.BlockID
	Module module.Identifier
}

// GraphModule is the graph's per-module record.
type GraphModule struct {
	Module module.Identifier
	// Issuer is the first module that led to this one, empty for entries.
	Issuer module.Identifier

	// AllDependencies is the flat list of every dependency the last build
	// discovered, nested ones included, in breadth-first order. Kept for
	// bulk queries that predate per-block traversal.
	AllDependencies []module.DependencyID
	Profile         *module.Profile

	// Incoming lists dependencies resolved to this module, Outgoing the
	// dependencies of this module that were resolved.
	Incoming []module.DependencyID
	Outgoing []module.DependencyID
}

// ModuleGraph is the shared, mutable result of the make phase.
type ModuleGraph struct {
	modules      map[module.Identifier]module.Module
	graphModules map[module.Identifier]*GraphModule
	dependencies map[module.DependencyID]module.Dependency
	blocks       map[module.BlockID]*module.Block
	parents      map[module.DependencyID]DependencyParents
	bailouts     map[module.Identifier][]string
	connections  map[module.DependencyID]module.Identifier
}

// New returns an empty graph.
func New() *ModuleGraph {
	return &ModuleGraph{
		modules:      make(map[module.Identifier]module.Module),
		graphModules: make(map[module.Identifier]*GraphModule),
		dependencies: make(map[module.DependencyID]module.Dependency),
		blocks:       make(map[module.BlockID]*module.Block),
		parents:      make(map[module.DependencyID]DependencyParents),
		bailouts:     make(map[module.Identifier][]string),
		connections:  make(map[module.DependencyID]module.Identifier),
	}
}

// AddModule moves m into the graph. The graph is its sole owner afterwards.
func (g *ModuleGraph) AddModule(m module.Module) error {
	id := m.Identifier()
	if _, ok := g.modules[id]; ok {
		return fmt.Errorf("%w: %s", ErrModuleExists, id)
	}
	g.modules[id] = m
	return nil
}

// Module returns the module with the given identifier.
func (g *ModuleGraph) Module(id module.Identifier) (module.Module, bool) {
	m, ok := g.modules[id]
	return m, ok
}

// Modules returns every module, ordered by identifier.
func (g *ModuleGraph) Modules() []module.Module {
	out := make([]module.Module, 0, len(g.modules))
	for _, m := range g.modules {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b module.Module) int {
		return cmp.Compare(a.Identifier(), b.Identifier())
	})
	return out
}

// ModuleCount returns the number of modules in the graph.
func (g *ModuleGraph) ModuleCount() int { return len(g.modules) }

// GraphModule returns the per-module record for id, if any.
func (g *ModuleGraph) GraphModule(id module.Identifier) (*GraphModule, bool) {
	gm, ok := g.graphModules[id]
	return gm, ok
}

// GraphModuleOrCreate returns the per-module record for id, creating it.
func (g *ModuleGraph) GraphModuleOrCreate(id module.Identifier) *GraphModule {
	gm, ok := g.graphModules[id]
	if !ok {
		gm = &GraphModule{Module: id}
		g.graphModules[id] = gm
	}
	return gm
}

// AddDependency inserts a dependency.
func (g *ModuleGraph) AddDependency(d module.Dependency) error {
	if _, ok := g.dependencies[d.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDependencyExists, d.ID())
	}
	g.dependencies[d.ID()] = d
	return nil
}

// Dependency returns the dependency with the given id.
func (g *ModuleGraph) Dependency(id module.DependencyID) (module.Dependency, bool) {
	d, ok := g.dependencies[id]
	return d, ok
}

// DependencyCount returns the number of dependencies in the graph.
func (g *ModuleGraph) DependencyCount() int { return len(g.dependencies) }

// AddBlock inserts a block. Its dependencies and child blocks are expected
// to have been taken out and inserted separately.
func (g *ModuleGraph) AddBlock(b *module.Block) error {
	if _, ok := g.blocks[b.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrBlockExists, b.ID())
	}
	g.blocks[b.ID()] = b
	return nil
}

// Block returns the block with the given id.
func (g *ModuleGraph) Block(id module.BlockID) (*module.Block, bool) {
	b, ok := g.blocks[id]
	return b, ok
}

// BlockCount returns the number of blocks in the graph.
func (g *ModuleGraph) BlockCount() int { return len(g.blocks) }

// SetParents writes the parent-linkage record of a dependency. Each
// dependency is linked exactly once.
func (g *ModuleGraph) SetParents(id module.DependencyID, p DependencyParents) error {
	if _, ok := g.parents[id]; ok {
		return fmt.Errorf("%w: %s", ErrParentsAlreadySet, id)
	}
	g.parents[id] = p
	return nil
}

// Parents returns the parent-linkage record of a dependency.
func (g *ModuleGraph) Parents(id module.DependencyID) (DependencyParents, bool) {
	p, ok := g.parents[id]
	return p, ok
}

// AppendOptimizationBailouts adds notes to the module's bailout list,
// keeping whatever was recorded before.
func (g *ModuleGraph) AppendOptimizationBailouts(id module.Identifier, notes ...string) {
	if len(notes) == 0 {
		return
	}
	g.bailouts[id] = append(g.bailouts[id], notes...)
}

// OptimizationBailouts returns the module's bailout notes.
func (g *ModuleGraph) OptimizationBailouts(id module.Identifier) []string {
	return g.bailouts[id]
}

// SetResolvedModule records that dependency dep, issued by origin, resolved
// to target. origin is empty for entry dependencies.
func (g *ModuleGraph) SetResolvedModule(origin module.Identifier, dep module.DependencyID, target module.Identifier) {
	g.connections[dep] = target
	tgm := g.GraphModuleOrCreate(target)
	tgm.Incoming = append(tgm.Incoming, dep)
	if tgm.Issuer == "" {
		tgm.Issuer = origin
	}
	if origin != "" {
		ogm := g.GraphModuleOrCreate(origin)
		ogm.Outgoing = append(ogm.Outgoing, dep)
	}
}

// ResolvedModule returns the module a dependency resolved to.
func (g *ModuleGraph) ResolvedModule(dep module.DependencyID) (module.Identifier, bool) {
	id, ok := g.connections[dep]
	return id, ok
}
