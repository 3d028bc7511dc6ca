package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/albertocavalcante/modmake/internal/graph"
	"github.com/albertocavalcante/modmake/internal/log"
	"github.com/albertocavalcante/modmake/pkg/module"
)

// BuildResultTask folds a build result into the module graph.
type BuildResultTask struct {
	Module         module.Module
	Result         *module.BuildResult
	Diagnostics    []module.Diagnostic
	CurrentProfile *module.Profile
	FromCache      bool
}

func (t *BuildResultTask) Name() string { return "build result " + string(t.Module.Identifier()) }

// RunSync implements taskloop.SyncTask.
//
// Every dependency the build discovered, however deeply nested in blocks,
// is linked to the block containing it (or to no block) and to the module,
// then inserted into the graph exactly once. Blocks are walked breadth
// first. Only dependencies outside any block are registered on the module
// as its own; every block in the forest is registered on the module.
//
// A result that would insert the module, a dependency or a block twice, or
// link a dependency twice, is rejected before anything is written.
func (t *BuildResultTask) RunSync(ctx context.Context, c *Context) ([]Task, error) {
	m := t.Module
	id := m.Identifier()
	result := t.Result
	mg := c.Graph

	if err := checkInsertable(mg, id, result); err != nil {
		return nil, fmt.Errorf("failed to integrate %s: %w", id, err)
	}

	if c.CacheCounter != nil {
		c.CacheCounter.Record(t.FromCache)
	}

	if c.Options.TreeShakingEnabled() {
		c.OptimizeAnalyzeResults[id] = result.AnalyzeResult
	}

	if len(t.Diagnostics) > 0 {
		c.FailedModules.Add(id)
	}

	log.Trace(ctx, "module built", "module", id)
	c.Diagnostics = append(c.Diagnostics, t.Diagnostics...)
	if c.Metrics != nil {
		for _, d := range t.Diagnostics {
			c.Metrics.Diagnostics.WithLabelValues(d.Severity.String()).Inc()
		}
	}
	mg.AppendOptimizationBailouts(id, result.OptimizationBailouts...)

	info := result.BuildInfo
	c.FileDependencies.AddAll(info.FileDependencies)
	c.ContextDependencies.AddAll(info.ContextDependencies)
	c.MissingDependencies.AddAll(info.MissingDependencies)
	c.BuildDependencies.AddAll(info.BuildDependencies)

	var allDependencies []module.DependencyID
	handleBlock := func(deps []module.Dependency, blocks []*module.Block, current *module.Block) ([]*module.Block, error) {
		parents := graph.DependencyParents{Module: id}
		if current != nil {
			parents.Block = current.ID()
		}
		for _, dep := range deps {
			depID := dep.ID()
			if current == nil {
				m.AddDependencyID(depID)
			}
			allDependencies = append(allDependencies, depID)
			if err := mg.SetParents(depID, parents); err != nil {
				return nil, err
			}
			if err := mg.AddDependency(dep); err != nil {
				return nil, err
			}
		}
		if current != nil {
			m.AddBlockID(current.ID())
			if err := mg.AddBlock(current); err != nil {
				return nil, err
			}
		}
		return blocks, nil
	}

	queue, err := handleBlock(result.Dependencies, result.Blocks, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to integrate %s: %w", id, err)
	}
	for len(queue) > 0 {
		block := queue[0]
		queue = queue[1:]
		deps := block.TakeDependencies()
		children, err := handleBlock(deps, block.TakeBlocks(), block)
		if err != nil {
			return nil, fmt.Errorf("failed to integrate %s: %w", id, err)
		}
		queue = append(queue, children...)
	}

	mgm := mg.GraphModuleOrCreate(id)
	mgm.AllDependencies = allDependencies
	if t.CurrentProfile != nil {
		mgm.Profile = t.CurrentProfile
		if c.Metrics != nil {
			c.Metrics.BuildDuration.Observe(t.CurrentProfile.BuildDuration().Seconds())
		}
	}

	m.SetBuildInfo(info)
	m.SetBuildMeta(result.BuildMeta)

	if err := mg.AddModule(m); err != nil {
		return nil, err
	}
	c.building.Remove(id)
	if c.Metrics != nil {
		c.Metrics.Modules.Inc()
	}

	return []Task{&ProcessDependenciesTask{
		Dependencies:             allDependencies,
		OriginalModuleIdentifier: id,
	}}, nil
}

// checkInsertable walks the block forest of result without draining it and
// reports the first id the graph, or the forest itself, already holds.
func checkInsertable(mg *graph.ModuleGraph, id module.Identifier, result *module.BuildResult) error {
	if _, ok := mg.Module(id); ok {
		return fmt.Errorf("%w: %s", graph.ErrModuleExists, id)
	}
	deps := make(map[module.DependencyID]struct{})
	checkDeps := func(list []module.Dependency) error {
		for _, dep := range list {
			depID := dep.ID()
			if _, ok := mg.Parents(depID); ok {
				return fmt.Errorf("%w: %s", graph.ErrParentsAlreadySet, depID)
			}
			if _, ok := deps[depID]; ok {
				return fmt.Errorf("%w: %s", graph.ErrParentsAlreadySet, depID)
			}
			if _, ok := mg.Dependency(depID); ok {
				return fmt.Errorf("%w: %s", graph.ErrDependencyExists, depID)
			}
			deps[depID] = struct{}{}
		}
		return nil
	}

	if err := checkDeps(result.Dependencies); err != nil {
		return err
	}
	blocks := make(map[module.BlockID]struct{})
	queue := slices.Clone(result.Blocks)
	for len(queue) > 0 {
		block := queue[0]
		queue = queue[1:]
		if _, ok := blocks[block.ID()]; ok {
			return fmt.Errorf("%w: %s", graph.ErrBlockExists, block.ID())
		}
		if _, ok := mg.Block(block.ID()); ok {
			return fmt.Errorf("%w: %s", graph.ErrBlockExists, block.ID())
		}
		blocks[block.ID()] = struct{}{}
		if err := checkDeps(block.Dependencies()); err != nil {
			return err
		}
		queue = append(queue, block.Blocks()...)
	}
	return nil
}
