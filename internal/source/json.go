package source

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/albertocavalcante/modmake/pkg/module"
	"github.com/albertocavalcante/modmake/pkg/util"
)

// JSON is a JSON data module. It has no dependencies.
type JSON struct {
	module.Base
	path string
}

var _ module.Module = (*JSON)(nil)

// NewJSON creates the module for the JSON document at path.
func NewJSON(path, context string, sourceMap module.SourceMapKind) module.Module {
	return &JSON{Base: module.NewBase(module.Identifier(path), context, sourceMap), path: path}
}

// Path returns the resource path of the module.
func (m *JSON) Path() string { return m.path }

// Build validates the document. Invalid JSON is reported as an error
// diagnostic rather than a build failure.
func (m *JSON) Build(_ context.Context, bctx module.BuildContext) (*module.BuildResult, error) {
	m.ResetBuildState()

	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", m.path, err)
	}
	hash, err := contentHash(bctx.Cache, m.path, data)
	if err != nil {
		return nil, err
	}

	res := &module.BuildResult{
		BuildInfo: module.BuildInfo{
			Hash:             hash,
			Strict:           true,
			FileDependencies: []string{m.path},
		},
		BuildMeta: module.BuildMeta{
			ModuleType:  module.ModuleTypeJSON,
			ExportsType: "default",
		},
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		m.AddDiagnostic(module.Errorf("JSONParseError", "%v", err))
		return res, nil
	}
	if obj, ok := doc.(map[string]any); ok {
		res.AnalyzeResult.Exports = util.SortedKeys(obj)
	}
	return res, nil
}
