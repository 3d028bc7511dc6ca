package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/modmake/internal/resolve"
	"github.com/albertocavalcante/modmake/internal/snapshot"
	"github.com/albertocavalcante/modmake/pkg/config"
	"github.com/albertocavalcante/modmake/pkg/module"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func requests(deps []module.Dependency) []string {
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = d.(module.ModuleDependency).Request()
	}
	return out
}

func buildJS(t *testing.T, content string) (*JavaScript, *module.BuildResult) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.js")
	writeFile(t, path, content)
	m := NewJavaScript(path, filepath.Dir(path), module.SourceMapNone).(*JavaScript)
	res, err := m.Build(context.Background(), module.BuildContext{})
	require.NoError(t, err)
	return m, res
}

func TestJavaScriptESM(t *testing.T) {
	src := `// entry
import React from 'react'
import { a, b } from "./a"
import './side-effect.css'
import type { T } from './types'
export * from './re'
export { x as y } from './named'
/* import './commented-out'
   still a comment */
export const answer = 42
export function greet() {}
export class Greeter {}
export default greet
const lazy = () => import('./lazy')
export { lazy, answer as theAnswer }
`
	m, res := buildJS(t, src)

	assert.Equal(t, []string{"react", "./a", "./side-effect.css", "./types", "./re", "./named"}, requests(res.Dependencies))
	require.Len(t, res.Blocks, 1)
	assert.Equal(t, []string{"./lazy"}, requests(res.Blocks[0].Dependencies()))
	assert.Equal(t, module.NewBlockID(m.Identifier(), "0"), res.Blocks[0].ID())
	assert.Equal(t, "14:20", res.Blocks[0].Loc)

	assert.Equal(t, module.ModuleTypeESM, res.BuildMeta.ModuleType)
	assert.Equal(t, "namespace", res.BuildMeta.ExportsType)
	assert.True(t, res.BuildInfo.Strict)
	assert.Equal(t, []string{"answer", "greet", "Greeter", "default", "lazy", "theAnswer"}, res.AnalyzeResult.Exports)
	assert.True(t, res.AnalyzeResult.SideEffects)
	assert.Empty(t, res.OptimizationBailouts)
	assert.Empty(t, m.Diagnostics())

	dep := res.Dependencies[1].(*module.ImportDependency)
	assert.Equal(t, "esm import", dep.Type())
	assert.Equal(t, "3:23", dep.Loc)
}

func TestJavaScriptPureModuleHasNoSideEffects(t *testing.T) {
	_, res := buildJS(t, "import { a } from './a'\nexport const b = a\n")
	assert.False(t, res.AnalyzeResult.SideEffects)
}

func TestJavaScriptCommonJS(t *testing.T) {
	src := `'use strict'
const fs = require('fs')
const dep = require("./dep"), other = require('./other')
const dynamic = require(name)
module.exports = { fs, dep }
exports.more = 1
`
	m, res := buildJS(t, src)

	assert.Equal(t, []string{"fs", "./dep", "./other"}, requests(res.Dependencies))
	assert.Equal(t, "cjs require", res.Dependencies[0].Type())
	assert.Equal(t, module.ModuleTypeCommonJS, res.BuildMeta.ModuleType)
	assert.Equal(t, "dynamic", res.BuildMeta.ExportsType)
	assert.True(t, res.BuildInfo.Strict)
	assert.Equal(t, []string{"CommonJS bailout: module.exports is used directly"}, res.OptimizationBailouts)

	diags := m.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, module.SeverityWarning, diags[0].Severity)
	assert.Equal(t, "CriticalDependencyWarning", diags[0].Title)
	assert.Equal(t, "4:17", diags[0].Loc)
}

func TestJavaScriptMixedSyntaxBailsOut(t *testing.T) {
	_, res := buildJS(t, "import a from './a'\nmodule.exports = a\n")
	assert.Equal(t, module.ModuleTypeCommonJS, res.BuildMeta.ModuleType)
	assert.Len(t, res.OptimizationBailouts, 2)
}

func TestJavaScriptTopLevelAwait(t *testing.T) {
	m, res := buildJS(t, "export const a = 1\nawait fetch('/x')\n")
	assert.True(t, res.BuildMeta.HasTopLevelAwait)
	assert.Empty(t, m.Diagnostics())

	m, _ = buildJS(t, "await fetch('/x')\n")
	require.Len(t, m.Diagnostics(), 1)
	assert.True(t, m.Diagnostics()[0].IsError())
}

func TestJavaScriptNestedDynamicImportExpression(t *testing.T) {
	m, res := buildJS(t, "const load = (p) => import(p)\n")
	assert.Empty(t, res.Blocks)
	require.Len(t, m.Diagnostics(), 1)
	assert.Equal(t, module.ModuleTypeAuto, res.BuildMeta.ModuleType)
}

func TestJavaScriptRebuildResetsState(t *testing.T) {
	m, _ := buildJS(t, "require(x)\n")
	require.Len(t, m.Diagnostics(), 1)

	writeFile(t, m.Path(), "require('./y')\n")
	_, err := m.Build(context.Background(), module.BuildContext{})
	require.NoError(t, err)
	assert.Empty(t, m.Diagnostics())
}

type fixedHasher string

func (h fixedHasher) FileHash(string) (string, error) { return string(h), nil }

func TestJavaScriptHash(t *testing.T) {
	m, res := buildJS(t, "export {}\n")
	assert.Equal(t, snapshot.HashBytes([]byte("export {}\n")), res.BuildInfo.Hash)
	assert.Equal(t, []string{m.Path()}, res.BuildInfo.FileDependencies)

	res, err := m.Build(context.Background(), module.BuildContext{Cache: fixedHasher("cached")})
	require.NoError(t, err)
	assert.Equal(t, "cached", res.BuildInfo.Hash)
}

func TestJavaScriptMissingFile(t *testing.T) {
	m := NewJavaScript("/does/not/exist.js", "/does/not", module.SourceMapNone)
	_, err := m.Build(context.Background(), module.BuildContext{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	writeFile(t, path, `{"name": "x", "version": "1.0.0"}`)

	m := NewJSON(path, filepath.Dir(path), module.SourceMapNone)
	res, err := m.Build(context.Background(), module.BuildContext{})
	require.NoError(t, err)
	assert.Empty(t, res.Dependencies)
	assert.Equal(t, module.ModuleTypeJSON, res.BuildMeta.ModuleType)
	assert.Equal(t, []string{"name", "version"}, res.AnalyzeResult.Exports)
	assert.Empty(t, m.Diagnostics())

	writeFile(t, path, `{"name": `)
	res, err = m.Build(context.Background(), module.BuildContext{})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, m.Diagnostics(), 1)
	assert.Equal(t, "JSONParseError", m.Diagnostics()[0].Title)
	assert.True(t, m.Diagnostics()[0].IsError())
}

func TestFactory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.ts"), "")
	writeFile(t, filepath.Join(root, "data.json"), "{}")
	writeFile(t, filepath.Join(root, "style.css"), "")

	f := &Factory{
		Resolver: resolve.New(config.NewConfig().Resolve),
		Registry: NewRegistry(ParserLine),
	}
	create := func(request string) (module.Module, error) {
		return f.Create(context.Background(), module.FactorizeRequest{
			Dependency: module.NewImportDependency(request, "esm import"),
			Context:    root,
		})
	}

	m, err := create("./a")
	require.NoError(t, err)
	assert.IsType(t, &JavaScript{}, m)
	assert.Equal(t, module.Identifier(filepath.Join(root, "a.ts")), m.Identifier())
	assert.Equal(t, root, m.Context())

	m, err = create("./data.json")
	require.NoError(t, err)
	assert.IsType(t, &JSON{}, m)

	_, err = create("./style.css")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = create("./nope")
	var re *module.ResolveError
	assert.True(t, errors.As(err, &re))
}
