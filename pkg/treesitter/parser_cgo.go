//go:build cgo

package treesitter

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Available reports whether parsers can be created.
func Available() bool { return true }

func sitterLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case JavaScript:
		return javascript.GetLanguage(), nil
	case TypeScript:
		return typescript.GetLanguage(), nil
	case TSX:
		return tsx.GetLanguage(), nil
	default:
		return nil, ErrLanguageNotSupported{Language: lang}
	}
}

// NewParser creates a parser for lang.
func NewParser(lang Language) (Parser, error) {
	sl, err := sitterLanguage(lang)
	if err != nil {
		return nil, err
	}
	parser := sitter.NewParser()
	parser.SetLanguage(sl)
	return &cgoParser{parser: parser, lang: lang}, nil
}

type cgoParser struct {
	mu     sync.Mutex
	parser *sitter.Parser
	lang   Language
	closed bool
}

func (p *cgoParser) Language() Language { return p.lang }

func (p *cgoParser) Parse(ctx context.Context, source []byte) (Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("%s parser is closed", p.lang)
	}
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return &cgoTree{tree: tree, source: source}, nil
}

func (p *cgoParser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.parser.Close()
	}
	return nil
}

type cgoTree struct {
	tree   *sitter.Tree
	source []byte
}

func (t *cgoTree) RootNode() Node { return wrap(t.tree.RootNode()) }

func (t *cgoTree) Source() []byte { return t.source }

func (t *cgoTree) HasError() bool {
	root := t.tree.RootNode()
	return root != nil && root.HasError()
}

func (t *cgoTree) Close() error {
	t.tree.Close()
	return nil
}

type cgoNode struct {
	node *sitter.Node
}

// wrap keeps nil children nil at the interface level.
func wrap(n *sitter.Node) Node {
	if n == nil {
		return nil
	}
	return &cgoNode{node: n}
}

func (n *cgoNode) Type() string      { return n.node.Type() }
func (n *cgoNode) StartByte() uint32 { return n.node.StartByte() }
func (n *cgoNode) EndByte() uint32   { return n.node.EndByte() }

func (n *cgoNode) StartPoint() Point {
	p := n.node.StartPoint()
	return Point{Row: p.Row, Column: p.Column}
}

func (n *cgoNode) Content(source []byte) string { return n.node.Content(source) }
func (n *cgoNode) ChildCount() uint32           { return n.node.ChildCount() }
func (n *cgoNode) Child(i uint32) Node          { return wrap(n.node.Child(int(i))) }
func (n *cgoNode) NamedChildCount() uint32      { return n.node.NamedChildCount() }
func (n *cgoNode) NamedChild(i uint32) Node     { return wrap(n.node.NamedChild(int(i))) }

func (n *cgoNode) ChildByFieldName(name string) Node {
	return wrap(n.node.ChildByFieldName(name))
}

func (n *cgoNode) Parent() Node  { return wrap(n.node.Parent()) }
func (n *cgoNode) IsNamed() bool { return n.node.IsNamed() }
func (n *cgoNode) IsError() bool { return n.node.IsError() }
