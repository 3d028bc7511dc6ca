// Package resolve maps import requests to files on disk.
//
// Relative and absolute requests are resolved against the issuing
// directory. Bare requests are looked up in node_modules directories from
// the issuer upward. A candidate path is tried as a file, then with each
// configured extension, then as a directory (package.json "main" first,
// then each main file).
package resolve

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/albertocavalcante/modmake/pkg/config"
	"github.com/albertocavalcante/modmake/pkg/module"
)

const nodeModules = "node_modules"

// Resolver resolves requests on the local filesystem. Results are
// memoized until Clear.
type Resolver struct {
	extensions []string
	mainFiles  []string
	memo       *xsync.MapOf[string, string]
}

var _ module.Resolver = (*Resolver)(nil)

// New creates a resolver using the extensions and main files of cfg.
func New(cfg config.ResolveConfig) *Resolver {
	mainFiles := cfg.MainFiles
	if len(mainFiles) == 0 {
		mainFiles = []string{"index"}
	}
	return &Resolver{
		extensions: cfg.Extensions,
		mainFiles:  mainFiles,
		memo:       xsync.NewMapOf[string, string](),
	}
}

// Resolve implements module.Resolver. Failures are *module.ResolveError
// wrapping module.ErrNotFound and list every probed path.
func (r *Resolver) Resolve(ctx context.Context, dir, request string) (string, error) {
	key := dir + "\x00" + request
	if p, ok := r.memo.Load(key); ok {
		return p, nil
	}

	var tried []string
	var found string
	var err error
	if isPathRequest(request) {
		base := request
		if !filepath.IsAbs(base) {
			base = filepath.Join(dir, request)
		}
		found, err = r.tryPath(ctx, base, &tried)
	} else {
		found, err = r.tryNodeModules(ctx, dir, request, &tried)
	}
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", &module.ResolveError{Request: request, Dir: dir, Tried: tried, Err: module.ErrNotFound}
	}
	r.memo.Store(key, found)
	return found, nil
}

// Clear forgets memoized resolutions.
func (r *Resolver) Clear() { r.memo.Clear() }

func isPathRequest(request string) bool {
	return request == "." || request == ".." ||
		strings.HasPrefix(request, "./") || strings.HasPrefix(request, "../") ||
		filepath.IsAbs(request)
}

func (r *Resolver) tryNodeModules(ctx context.Context, dir, request string, tried *[]string) (string, error) {
	for cur := dir; ; {
		if filepath.Base(cur) != nodeModules {
			found, err := r.tryPath(ctx, filepath.Join(cur, nodeModules, request), tried)
			if err != nil || found != "" {
				return found, err
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", nil
		}
		cur = parent
	}
}

func (r *Resolver) tryPath(ctx context.Context, base string, tried *[]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if found := r.tryFile(base, tried); found != "" {
		return found, nil
	}
	if !isDir(base) {
		return "", nil
	}

	if main := packageMain(base); main != "" {
		if found := r.tryFile(filepath.Join(base, main), tried); found != "" {
			return found, nil
		}
		if found := r.tryMainFiles(filepath.Join(base, main), tried); found != "" {
			return found, nil
		}
	}
	return r.tryMainFiles(base, tried), nil
}

func (r *Resolver) tryMainFiles(dir string, tried *[]string) string {
	for _, name := range r.mainFiles {
		if found := r.tryFile(filepath.Join(dir, name), tried); found != "" {
			return found
		}
	}
	return ""
}

// tryFile probes base as is, then with every extension.
func (r *Resolver) tryFile(base string, tried *[]string) string {
	if isFile(base) {
		return base
	}
	*tried = append(*tried, base)
	for _, ext := range r.extensions {
		p := base + ext
		if isFile(p) {
			return p
		}
		*tried = append(*tried, p)
	}
	return ""
}

type packageJSON struct {
	Main   string `json:"main"`
	Module string `json:"module"`
}

// packageMain returns the entry point declared in dir/package.json.
func packageMain(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	if pkg.Module != "" {
		return pkg.Module
	}
	return pkg.Main
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	return err == nil && info.IsDir()
}
