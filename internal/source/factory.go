package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/albertocavalcante/modmake/internal/log"
	"github.com/albertocavalcante/modmake/pkg/module"
	"github.com/albertocavalcante/modmake/pkg/registry"
	"github.com/albertocavalcante/modmake/pkg/treesitter"
)

// ErrUnsupportedType is returned for resolved paths with no registered
// module kind.
var ErrUnsupportedType = errors.New("no module type registered")

// ScriptExtensions are the extensions built as JavaScript modules.
var ScriptExtensions = []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx"}

// Parser selects how script sources are scanned.
type Parser string

const (
	// ParserLine scans sources line by line.
	ParserLine Parser = "line"
	// ParserSyntax walks a tree-sitter syntax tree.
	ParserSyntax Parser = "syntax"
)

// Register adds the module kinds of this package to r.
func Register(r *registry.Registry, parser Parser) {
	script := NewJavaScript
	if parser == ParserSyntax {
		if !treesitter.Available() {
			log.Warn("tree-sitter is not available in this build, scanning scripts by line")
		}
		script = NewJavaScriptSyntax
	}
	r.Register(script, ScriptExtensions...)
	r.Register(NewJSON, ".json")
}

// NewRegistry returns a registry with the module kinds of this package.
func NewRegistry(parser Parser) *registry.Registry {
	r := registry.New()
	Register(r, parser)
	return r
}

// Factory resolves dependency requests and creates modules for them.
type Factory struct {
	Resolver  module.Resolver
	Registry  *registry.Registry
	SourceMap module.SourceMapKind
}

var _ module.Factory = (*Factory)(nil)

// Create implements module.Factory. Requests are resolved from
// req.Context; the module identifier is the resolved path.
func (f *Factory) Create(ctx context.Context, req module.FactorizeRequest) (module.Module, error) {
	path, err := f.Resolver.Resolve(ctx, req.Context, req.Dependency.Request())
	if err != nil {
		return nil, err
	}
	create, ok := f.Registry.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrUnsupportedType, path)
	}
	return create(path, filepath.Dir(path), f.SourceMap), nil
}
