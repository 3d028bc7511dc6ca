package module

import (
	"context"
	"slices"

	"github.com/albertocavalcante/modmake/pkg/config"
)

// SourceMapKind selects how much source-map information a build keeps.
type SourceMapKind int

const (
	SourceMapNone SourceMapKind = iota
	SourceMapSimple
	SourceMapFull
)

// ParseSourceMapKind maps the config spelling to a SourceMapKind.
// Unknown values disable source maps.
func ParseSourceMapKind(s string) SourceMapKind {
	switch s {
	case "simple":
		return SourceMapSimple
	case "full":
		return SourceMapFull
	default:
		return SourceMapNone
	}
}

// Resolver turns a request issued from a directory into a resource path.
type Resolver interface {
	Resolve(ctx context.Context, dir, request string) (string, error)
}

// Hasher exposes the build cache's memoized content hashing to builds.
type Hasher interface {
	FileHash(path string) (string, error)
}

// BuildContext is everything a module may consult while building.
type BuildContext struct {
	Options   *config.Config
	Resolver  Resolver
	Cache     Hasher
	SourceMap SourceMapKind

	// Module is the identifier of the module being built and Context its
	// directory, if it has one.
	Module  Identifier
	Context string
}

// Module is a buildable source unit. Variants embed Base for bookkeeping
// and implement Build.
type Module interface {
	Identifier() Identifier
	// Context is the directory requests from this module resolve against.
	Context() string
	SourceMapKind() SourceMapKind

	// Build parses the module and reports what it depends on. Diagnostics
	// raised while building are recorded on the module, not returned.
	Build(ctx context.Context, bctx BuildContext) (*BuildResult, error)
	Diagnostics() []Diagnostic

	BuildInfo() *BuildInfo
	SetBuildInfo(BuildInfo)
	BuildMeta() *BuildMeta
	SetBuildMeta(BuildMeta)

	DependencyIDs() []DependencyID
	AddDependencyID(DependencyID)
	BlockIDs() []BlockID
	AddBlockID(BlockID)
}

// FactorizeRequest asks a Factory for the module a dependency points at.
type FactorizeRequest struct {
	Dependency ModuleDependency
	// Issuer is empty for entries.
	Issuer  Identifier
	Context string
}

// Factory creates modules for dependencies.
type Factory interface {
	Create(ctx context.Context, req FactorizeRequest) (Module, error)
}

// Base implements the bookkeeping half of Module.
type Base struct {
	id         Identifier
	context    string
	sourceMap  SourceMapKind
	buildInfo  *BuildInfo
	buildMeta  *BuildMeta
	depIDs     []DependencyID
	blockIDs   []BlockID
	diagnostic []Diagnostic
}

// NewBase creates the bookkeeping for a module with the given identity.
func NewBase(id Identifier, context string, sourceMap SourceMapKind) Base {
	return Base{id: id, context: context, sourceMap: sourceMap}
}

func (b *Base) Identifier() Identifier       { return b.id }
func (b *Base) Context() string              { return b.context }
func (b *Base) SourceMapKind() SourceMapKind { return b.sourceMap }

// Diagnostics returns a copy of the diagnostics recorded so far.
func (b *Base) Diagnostics() []Diagnostic { return slices.Clone(b.diagnostic) }

// AddDiagnostic records a diagnostic raised while building.
func (b *Base) AddDiagnostic(d Diagnostic) { b.diagnostic = append(b.diagnostic, d) }

// ResetBuildState clears per-build state before a rebuild.
func (b *Base) ResetBuildState() {
	b.diagnostic = nil
	b.depIDs = nil
	b.blockIDs = nil
}

func (b *Base) BuildInfo() *BuildInfo { return b.buildInfo }

func (b *Base) SetBuildInfo(info BuildInfo) { b.buildInfo = &info }

func (b *Base) BuildMeta() *BuildMeta { return b.buildMeta }

func (b *Base) SetBuildMeta(meta BuildMeta) { b.buildMeta = &meta }

func (b *Base) DependencyIDs() []DependencyID { return b.depIDs }

func (b *Base) AddDependencyID(id DependencyID) { b.depIDs = append(b.depIDs, id) }

func (b *Base) BlockIDs() []BlockID { return b.blockIDs }

func (b *Base) AddBlockID(id BlockID) { b.blockIDs = append(b.blockIDs, id) }
