// Package treesitter parses JavaScript and TypeScript sources into syntax
// trees using tree-sitter grammars.
//
// Parsing requires CGO. When the package is built without it, Available
// reports false and NewParser returns ErrUnavailable, so callers can fall
// back to a scanner that does not need a syntax tree.
//
// A Parser must not be used from multiple goroutines at once. Trees and
// Nodes are safe to read concurrently.
package treesitter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Language is a grammar that can be parsed.
type Language string

const (
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
)

// ErrUnavailable is returned by NewParser when the binary was built
// without CGO.
var ErrUnavailable = errors.New("tree-sitter parsing is not available: build with CGO_ENABLED=1")

// ErrLanguageNotSupported is returned for a language with no grammar.
type ErrLanguageNotSupported struct {
	Language Language
}

func (e ErrLanguageNotSupported) Error() string {
	return fmt.Sprintf("language %q is not supported", e.Language)
}

// LanguageForPath picks the grammar for a file by its extension.
func LanguageForPath(path string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs", ".jsx":
		return JavaScript, true
	case ".ts", ".mts", ".cts":
		return TypeScript, true
	case ".tsx":
		return TSX, true
	default:
		return "", false
	}
}

// Point is a zero-based row and byte column in a source.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a node of a syntax tree.
type Node interface {
	// Type is the grammar symbol of the node, such as "call_expression".
	Type() string
	StartByte() uint32
	EndByte() uint32
	StartPoint() Point
	Content(source []byte) string
	ChildCount() uint32
	Child(index uint32) Node
	NamedChildCount() uint32
	NamedChild(index uint32) Node
	// ChildByFieldName returns nil when the node has no such field.
	ChildByFieldName(name string) Node
	Parent() Node
	IsNamed() bool
	IsError() bool
}

// Tree is a parsed source.
type Tree interface {
	RootNode() Node
	Source() []byte
	// HasError reports whether the parser had to recover from syntax errors.
	HasError() bool
	Close() error
}

// Parser parses sources of one language.
type Parser interface {
	Language() Language
	Parse(ctx context.Context, source []byte) (Tree, error)
	Close() error
}

// Walk visits n and its descendants depth first in source order. Children
// of a node are skipped when fn returns false for it.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := uint32(0); i < n.ChildCount(); i++ {
		Walk(n.Child(i), fn)
	}
}
