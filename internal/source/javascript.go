package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/modmake/internal/snapshot"
	"github.com/albertocavalcante/modmake/pkg/module"
)

const (
	kindESMImport = "esm import"
	kindReexport  = "esm export"
	kindRequire   = "cjs require"
	kindDynamic   = "import()"
)

// reference is a literal request found in a source. line is one-based and
// col is the zero-based byte column of the request text. call is the column
// of the import( expression for dynamic imports.
type reference struct {
	request string
	kind    string
	line    int
	col     int
	call    int
}

// expression is a require or import() whose request is not a literal.
// col is the zero-based column of the call.
type expression struct {
	message string
	line    int
	col     int
}

// scanResult is what a scanner finds in a module source.
type scanResult struct {
	deps        []reference
	dynamic     []reference
	expressions []expression
	exports     []string

	esm           bool
	cjs           bool
	cjsExports    bool
	sideEffects   bool
	strict        bool
	topLevelAwait bool
}

type scanner interface {
	scan(ctx context.Context, path string, src []byte) (*scanResult, error)
}

// JavaScript is a JavaScript or TypeScript source module.
type JavaScript struct {
	module.Base
	path    string
	scanner scanner
}

var _ module.Module = (*JavaScript)(nil)

// NewJavaScript creates the module for the script at path. Its source is
// scanned line by line.
func NewJavaScript(path, context string, sourceMap module.SourceMapKind) module.Module {
	return &JavaScript{
		Base:    module.NewBase(module.Identifier(path), context, sourceMap),
		path:    path,
		scanner: lineScanner{},
	}
}

// NewJavaScriptSyntax creates the module for the script at path. Its source
// is parsed into a syntax tree, falling back to line scanning when the
// source does not parse cleanly.
func NewJavaScriptSyntax(path, context string, sourceMap module.SourceMapKind) module.Module {
	return &JavaScript{
		Base:    module.NewBase(module.Identifier(path), context, sourceMap),
		path:    path,
		scanner: syntaxScanner{fallback: lineScanner{}},
	}
}

// Path returns the resource path of the module.
func (m *JavaScript) Path() string { return m.path }

// Build scans the module source for dependencies and exports.
// Static imports, re-exports and literal requires become module-level
// dependencies; each import() becomes a block of its own.
func (m *JavaScript) Build(ctx context.Context, bctx module.BuildContext) (*module.BuildResult, error) {
	m.ResetBuildState()

	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", m.path, err)
	}
	hash, err := contentHash(bctx.Cache, m.path, data)
	if err != nil {
		return nil, err
	}
	scan, err := m.scanner.scan(ctx, m.path, data)
	if err != nil {
		return nil, err
	}

	res := &module.BuildResult{
		BuildInfo: module.BuildInfo{
			Hash:             hash,
			FileDependencies: []string{m.path},
			Strict:           scan.strict,
		},
		AnalyzeResult: module.AnalyzeResult{
			Exports:     scan.exports,
			SideEffects: scan.sideEffects,
		},
	}
	res.BuildMeta.HasTopLevelAwait = scan.topLevelAwait

	for _, ref := range scan.deps {
		res.Dependencies = append(res.Dependencies, newDep(ref))
	}
	for i, ref := range scan.dynamic {
		b := module.NewBlock(m.Identifier(), fmt.Sprintf("%d", i))
		b.Loc = fmt.Sprintf("%d:%d", ref.line, ref.call+1)
		b.AddDependency(newDep(ref))
		res.Blocks = append(res.Blocks, b)
	}
	for _, e := range scan.expressions {
		d := module.Warnf("CriticalDependencyWarning", "%s", e.message)
		d.Loc = fmt.Sprintf("%d:%d", e.line, e.col+1)
		m.AddDiagnostic(d)
	}

	if scan.cjsExports {
		res.OptimizationBailouts = append(res.OptimizationBailouts,
			"CommonJS bailout: module.exports is used directly")
	}
	switch {
	case scan.esm && !scan.cjs:
		res.BuildMeta.ModuleType = module.ModuleTypeESM
		res.BuildMeta.ExportsType = "namespace"
		res.BuildInfo.Strict = true
	case scan.cjs:
		res.BuildMeta.ModuleType = module.ModuleTypeCommonJS
		res.BuildMeta.ExportsType = "dynamic"
	default:
		res.BuildMeta.ModuleType = module.ModuleTypeAuto
	}
	if scan.esm && scan.cjs {
		res.OptimizationBailouts = append(res.OptimizationBailouts,
			"mixed ESM and CommonJS syntax, exports are treated as dynamic")
	}
	if scan.topLevelAwait && !scan.esm {
		m.AddDiagnostic(module.Errorf("TopLevelAwaitError", "top-level await is only allowed in ES modules"))
	}
	return res, nil
}

func newDep(ref reference) *module.ImportDependency {
	d := module.NewImportDependency(ref.request, ref.kind)
	d.Loc = fmt.Sprintf("%d:%d", ref.line, ref.col+1)
	return d
}

// contentHash prefers the build cache's memoized hash of path.
func contentHash(h module.Hasher, path string, data []byte) (string, error) {
	if h == nil {
		return snapshot.HashBytes(data), nil
	}
	hash, err := h.FileHash(path)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", filepath.Base(path), err)
	}
	return hash, nil
}
