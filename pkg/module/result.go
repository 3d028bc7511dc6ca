package module

import "slices"

// BuildInfo is the build-time information attached to a module.
type BuildInfo struct {
	// Hash is the content hash of the module source.
	Hash   string
	Strict bool

	// Side-channel paths the build depended on. They are merged into the
	// compilation-wide sets and drive cache validation.
	FileDependencies    []string
	ContextDependencies []string
	MissingDependencies []string
	BuildDependencies   []string
}

// Clone returns a copy that shares no slices with b.
func (b BuildInfo) Clone() BuildInfo {
	b.FileDependencies = slices.Clone(b.FileDependencies)
	b.ContextDependencies = slices.Clone(b.ContextDependencies)
	b.MissingDependencies = slices.Clone(b.MissingDependencies)
	b.BuildDependencies = slices.Clone(b.BuildDependencies)
	return b
}

// ModuleType names the module format a build detected.
type ModuleType string

const (
	ModuleTypeAuto     ModuleType = "javascript/auto"
	ModuleTypeESM      ModuleType = "javascript/esm"
	ModuleTypeCommonJS ModuleType = "javascript/dynamic"
	ModuleTypeJSON     ModuleType = "json"
)

// BuildMeta is format metadata attached to a module after building.
type BuildMeta struct {
	ModuleType       ModuleType
	ExportsType      string
	HasTopLevelAwait bool
}

// AnalyzeResult is the export/side-effect summary used by tree shaking.
type AnalyzeResult struct {
	Exports     []string
	SideEffects bool
}

// BuildResult is what a module's Build returns.
type BuildResult struct {
	BuildInfo BuildInfo
	BuildMeta BuildMeta

	// Dependencies discovered directly at module level.
	Dependencies []Dependency
	// Blocks discovered at module level; each may nest further blocks.
	Blocks []*Block

	// AnalyzeResult is only consumed when tree shaking is enabled.
	AnalyzeResult AnalyzeResult

	OptimizationBailouts []string
}

// Clone returns a copy that can be consumed independently of r.
// Blocks are deep-copied because integration drains them.
func (r *BuildResult) Clone() *BuildResult {
	if r == nil {
		return nil
	}
	c := &BuildResult{
		BuildInfo:            r.BuildInfo.Clone(),
		BuildMeta:            r.BuildMeta,
		Dependencies:         slices.Clone(r.Dependencies),
		AnalyzeResult:        AnalyzeResult{Exports: slices.Clone(r.AnalyzeResult.Exports), SideEffects: r.AnalyzeResult.SideEffects},
		OptimizationBailouts: slices.Clone(r.OptimizationBailouts),
	}
	if len(r.Blocks) > 0 {
		c.Blocks = make([]*Block, len(r.Blocks))
		for i, b := range r.Blocks {
			c.Blocks[i] = b.Clone()
		}
	}
	return c
}

// BuildOutput pairs a build result with the diagnostics the module
// accumulated while producing it. It is the value the build cache stores.
type BuildOutput struct {
	Result      *BuildResult
	Diagnostics []Diagnostic
}

// Clone returns an independent copy of o.
func (o *BuildOutput) Clone() *BuildOutput {
	if o == nil {
		return nil
	}
	return &BuildOutput{
		Result:      o.Result.Clone(),
		Diagnostics: slices.Clone(o.Diagnostics),
	}
}
