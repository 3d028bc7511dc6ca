package resolve

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/albertocavalcante/modmake/pkg/config"
	"github.com/albertocavalcante/modmake/pkg/module"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newResolver() *Resolver {
	return New(config.NewConfig().Resolve)
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "index.js"), "")
	writeFile(t, filepath.Join(src, "util.ts"), "")
	writeFile(t, filepath.Join(src, "data.json"), "{}")
	writeFile(t, filepath.Join(src, "components", "index.jsx"), "")
	writeFile(t, filepath.Join(root, "lib", "helper.mjs"), "")
	writeFile(t, filepath.Join(root, "node_modules", "left-pad", "package.json"), `{"main": "lib/pad.js"}`)
	writeFile(t, filepath.Join(root, "node_modules", "left-pad", "lib", "pad.js"), "")
	writeFile(t, filepath.Join(root, "node_modules", "esm-only", "package.json"), `{"main": "cjs.js", "module": "esm"}`)
	writeFile(t, filepath.Join(root, "node_modules", "esm-only", "esm", "index.js"), "")
	writeFile(t, filepath.Join(root, "node_modules", "plain", "index.js"), "")
	writeFile(t, filepath.Join(root, "node_modules", "plain", "sub.js"), "")

	tests := []struct {
		name    string
		request string
		want    string
	}{
		{"exact file", "./index.js", filepath.Join(src, "index.js")},
		{"extension probing", "./util", filepath.Join(src, "util.ts")},
		{"json", "./data.json", filepath.Join(src, "data.json")},
		{"directory index", "./components", filepath.Join(src, "components", "index.jsx")},
		{"parent directory", "../lib/helper", filepath.Join(root, "lib", "helper.mjs")},
		{"absolute", filepath.Join(src, "util"), filepath.Join(src, "util.ts")},
		{"package main", "left-pad", filepath.Join(root, "node_modules", "left-pad", "lib", "pad.js")},
		{"package module field", "esm-only", filepath.Join(root, "node_modules", "esm-only", "esm", "index.js")},
		{"package index", "plain", filepath.Join(root, "node_modules", "plain", "index.js")},
		{"package subpath", "plain/sub", filepath.Join(root, "node_modules", "plain", "sub.js")},
	}

	r := newResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), src, tt.request)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.request, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.request, got, tt.want)
			}
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := newResolver().Resolve(context.Background(), src, "./missing")
	if !errors.Is(err, module.ErrNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
	}
	var re *module.ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("Resolve() error = %T, want *module.ResolveError", err)
	}
	if re.Tried[0] != filepath.Join(src, "missing") {
		t.Errorf("Tried[0] = %q, want the bare path first", re.Tried[0])
	}
	if want := filepath.Join(src, "missing.js"); !contains(re.Tried, want) {
		t.Errorf("Tried = %v, want it to contain %q", re.Tried, want)
	}
}

func TestResolveMemoizesUntilClear(t *testing.T) {
	src := t.TempDir()
	a := filepath.Join(src, "a.js")
	writeFile(t, a, "")

	r := newResolver()
	if _, err := r.Resolve(context.Background(), src, "./a"); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(a); err != nil {
		t.Fatal(err)
	}
	if got, err := r.Resolve(context.Background(), src, "./a"); err != nil || got != a {
		t.Errorf("memoized Resolve() = (%q, %v), want (%q, nil)", got, err, a)
	}

	r.Clear()
	if _, err := r.Resolve(context.Background(), src, "./a"); err == nil {
		t.Error("Resolve() after Clear() should see the removed file")
	}
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newResolver().Resolve(ctx, t.TempDir(), "./a"); !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
