package treesitter

import (
	"context"
	"errors"
	"testing"
)

func TestLanguageForPath(t *testing.T) {
	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"a.js", JavaScript, true},
		{"a.MJS", JavaScript, true},
		{"a.jsx", JavaScript, true},
		{"a.ts", TypeScript, true},
		{"a.cts", TypeScript, true},
		{"a.tsx", TSX, true},
		{"a.json", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := LanguageForPath(tt.path)
			if got != tt.want || ok != tt.ok {
				t.Errorf("LanguageForPath(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNewParserUnknownLanguage(t *testing.T) {
	_, err := NewParser("cobol")
	var unsupported ErrLanguageNotSupported
	if !errors.As(err, &unsupported) {
		t.Fatalf("NewParser(cobol) error = %v, want ErrLanguageNotSupported", err)
	}
}

func TestNewParserAvailability(t *testing.T) {
	p, err := NewParser(JavaScript)
	if !Available() {
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("NewParser without CGO error = %v, want ErrUnavailable", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("NewParser(javascript) failed: %v", err)
	}
	defer p.Close()
	if p.Language() != JavaScript {
		t.Errorf("Language() = %q, want javascript", p.Language())
	}
}

func TestParseAndWalk(t *testing.T) {
	if !Available() {
		t.Skip("tree-sitter requires a CGO build")
	}
	tests := []struct {
		lang Language
		src  string
	}{
		{JavaScript, "import a from './a'\nconst b = require('./b')\n"},
		{TypeScript, "import type { A } from './a'\nconst b: string = require('./b')\n"},
		{TSX, "import a from './a'\nconst b = require('./b')\nconst el = <div />\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			p, err := NewParser(tt.lang)
			if err != nil {
				t.Fatalf("NewParser failed: %v", err)
			}
			defer p.Close()

			tree, err := p.Parse(context.Background(), []byte(tt.src))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			defer tree.Close()

			if tree.HasError() {
				t.Fatalf("unexpected syntax errors in %q", tt.src)
			}
			root := tree.RootNode()
			if root.Type() != "program" {
				t.Errorf("root.Type() = %q, want program", root.Type())
			}
			if string(tree.Source()) != tt.src {
				t.Errorf("Source() = %q, want %q", tree.Source(), tt.src)
			}

			var imports, calls int
			Walk(root, func(n Node) bool {
				switch n.Type() {
				case "import_statement":
					imports++
				case "call_expression":
					calls++
				}
				return true
			})
			if imports != 1 || calls != 1 {
				t.Errorf("found %d imports and %d calls, want 1 and 1", imports, calls)
			}
		})
	}
}

func TestWalkSkipsChildren(t *testing.T) {
	if !Available() {
		t.Skip("tree-sitter requires a CGO build")
	}
	p, err := NewParser(JavaScript)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	tree, err := p.Parse(context.Background(), []byte("f(g(h()))\n"))
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()

	var calls int
	Walk(tree.RootNode(), func(n Node) bool {
		if n.Type() == "call_expression" {
			calls++
			return false
		}
		return true
	})
	if calls != 1 {
		t.Errorf("visited %d calls, want 1", calls)
	}
}

func TestParseHasError(t *testing.T) {
	if !Available() {
		t.Skip("tree-sitter requires a CGO build")
	}
	p, err := NewParser(JavaScript)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	tree, err := p.Parse(context.Background(), []byte("const = = ;\n"))
	if err != nil {
		t.Fatal(err)
	}
	defer tree.Close()
	if !tree.HasError() {
		t.Error("HasError() = false for invalid source")
	}
}
