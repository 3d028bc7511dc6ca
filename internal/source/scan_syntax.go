package source

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/albertocavalcante/modmake/internal/log"
	"github.com/albertocavalcante/modmake/pkg/treesitter"
)

// syntaxScanner walks a tree-sitter syntax tree of the source. Sources that
// only parse with errors, and builds without tree-sitter, are handed to
// fallback.
type syntaxScanner struct {
	fallback scanner
}

func (s syntaxScanner) scan(ctx context.Context, path string, src []byte) (*scanResult, error) {
	lang, ok := treesitter.LanguageForPath(path)
	if !ok {
		return s.fallback.scan(ctx, path, src)
	}
	parser, err := treesitter.NewParser(lang)
	if errors.Is(err, treesitter.ErrUnavailable) {
		return s.fallback.scan(ctx, path, src)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = parser.Close() }()

	tree, err := parser.Parse(ctx, src)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer func() { _ = tree.Close() }()

	if tree.HasError() {
		log.Debug(ctx, "syntax errors, scanning by line", "path", path)
		return s.fallback.scan(ctx, path, src)
	}
	return scanTree(tree.RootNode(), src), nil
}

// scanTree collects the references and module facts of a parsed program.
func scanTree(root treesitter.Node, src []byte) *scanResult {
	res := &scanResult{}
	directives := true

	for i := uint32(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		switch stmt.Type() {
		case "comment", "hash_bang_line", "empty_statement":
			continue
		case "import_statement":
			res.esm = true
			if source := stmt.ChildByFieldName("source"); source != nil {
				res.deps = append(res.deps, literalRef(source, src, kindESMImport))
			}
		case "export_statement":
			res.esm = true
			if source := stmt.ChildByFieldName("source"); source != nil {
				res.deps = append(res.deps, literalRef(source, src, kindReexport))
			} else {
				res.exports = append(res.exports, exportedNames(stmt, src)...)
			}
		case "expression_statement":
			if directives && isStrictDirective(stmt, src) {
				res.strict = true
				continue
			}
			res.sideEffects = true
		default:
			res.sideEffects = true
		}
		directives = false
	}

	treesitter.Walk(root, func(n treesitter.Node) bool {
		switch n.Type() {
		case "call_expression":
			scanCall(res, n, src)
		case "await_expression":
			if topLevel(n) {
				res.topLevelAwait = true
			}
		case "assignment_expression":
			if left := n.ChildByFieldName("left"); left != nil && isCommonJSExport(left.Content(src)) {
				res.cjs = true
				res.cjsExports = true
			}
		}
		return true
	})
	return res
}

// scanCall records require() and import() calls.
func scanCall(res *scanResult, call treesitter.Node, src []byte) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return
	}
	var dynamic bool
	switch {
	case fn.Type() == "import":
		dynamic = true
	case fn.Type() == "identifier" && fn.Content(src) == "require":
		res.cjs = true
	default:
		return
	}

	pos := call.StartPoint()
	line, col := int(pos.Row)+1, int(pos.Column)

	var arg treesitter.Node
	if args := call.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() > 0 {
		arg = args.NamedChild(0)
	}
	if arg == nil || arg.Type() != "string" {
		msg := requireExpression
		if dynamic {
			msg = importExpression
		}
		res.expressions = append(res.expressions, expression{msg, line, col})
		return
	}

	if dynamic {
		ref := literalRef(arg, src, kindDynamic)
		ref.call = col
		res.dynamic = append(res.dynamic, ref)
		return
	}
	ref := literalRef(arg, src, kindRequire)
	ref.call = col
	res.deps = append(res.deps, ref)
}

// literalRef reads a string node. The reference column points past the
// opening quote.
func literalRef(str treesitter.Node, src []byte, kind string) reference {
	text := str.Content(src)
	if len(text) >= 2 {
		text = text[1 : len(text)-1]
	}
	pos := str.StartPoint()
	return reference{request: text, kind: kind, line: int(pos.Row) + 1, col: int(pos.Column) + 1}
}

// exportedNames lists the bindings a local export statement introduces.
func exportedNames(stmt treesitter.Node, src []byte) []string {
	for i := uint32(0); i < stmt.ChildCount(); i++ {
		if c := stmt.Child(i); !c.IsNamed() && c.Type() == "default" {
			return []string{"default"}
		}
	}

	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		return declaredNames(decl, src)
	}

	var names []string
	for i := uint32(0); i < stmt.NamedChildCount(); i++ {
		clause := stmt.NamedChild(i)
		if clause.Type() != "export_clause" {
			continue
		}
		for j := uint32(0); j < clause.NamedChildCount(); j++ {
			specifier := clause.NamedChild(j)
			if specifier.Type() != "export_specifier" {
				continue
			}
			name := specifier.ChildByFieldName("alias")
			if name == nil {
				name = specifier.ChildByFieldName("name")
			}
			if name != nil {
				names = append(names, name.Content(src))
			}
		}
	}
	return names
}

func declaredNames(decl treesitter.Node, src []byte) []string {
	switch decl.Type() {
	case "lexical_declaration", "variable_declaration":
		var names []string
		for i := uint32(0); i < decl.NamedChildCount(); i++ {
			d := decl.NamedChild(i)
			if d.Type() != "variable_declarator" {
				continue
			}
			if name := d.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
				names = append(names, name.Content(src))
			}
		}
		return names
	case "function_declaration", "generator_function_declaration",
		"class_declaration", "abstract_class_declaration":
		if name := decl.ChildByFieldName("name"); name != nil {
			return []string{name.Content(src)}
		}
	case "ambient_declaration":
		if decl.NamedChildCount() > 0 {
			return declaredNames(decl.NamedChild(0), src)
		}
	}
	return nil
}

func isStrictDirective(stmt treesitter.Node, src []byte) bool {
	if stmt.NamedChildCount() != 1 {
		return false
	}
	str := stmt.NamedChild(0)
	if str.Type() != "string" {
		return false
	}
	text := str.Content(src)
	return text == `"use strict"` || text == `'use strict'`
}

func isCommonJSExport(target string) bool {
	return target == "module.exports" ||
		strings.HasPrefix(target, "module.exports.") ||
		strings.HasPrefix(target, "exports.")
}

var functionScopes = map[string]bool{
	"function_declaration":           true,
	"function_expression":            true,
	"function":                       true,
	"generator_function_declaration": true,
	"generator_function":             true,
	"arrow_function":                 true,
	"method_definition":              true,
}

// topLevel reports whether n is outside every function body.
func topLevel(n treesitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if functionScopes[p.Type()] {
			return false
		}
	}
	return true
}
