// Package discovery finds workflow definitions by name or path across an ordered list of
// search roots. Earlier roots take precedence over later ones.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"flowrun/internal"
	"flowrun/internal/loader"
	"flowrun/internal/util"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

const (
	DefaultMaxDepth = 2
	// files starting with this marker are never enumerated
	ExcludeMarker = "_"
)

type Resolver struct {
	fs       afero.Fs
	roots    []string
	baseDir  string
	maxDepth int
}

type Option func(*Resolver)

// WithFs swaps the filesystem, mainly for tests.
func WithFs(fsys afero.Fs) Option {
	return func(r *Resolver) { r.fs = fsys }
}

// WithBaseDir sets the directory relative paths are resolved against.
func WithBaseDir(dir string) Option {
	return func(r *Resolver) { r.baseDir = dir }
}

func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth >= 0 {
			r.maxDepth = depth
		}
	}
}

// New returns a resolver searching roots in the given order. Duplicate and empty roots are
// dropped.
func New(roots []string, opts ...Option) *Resolver {
	r := &Resolver{
		fs:       afero.NewOsFs(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			r.baseDir = wd
		}
	}
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		root = r.abs(root)
		if !slices.Contains(r.roots, root) {
			r.roots = append(r.roots, root)
		}
	}
	return r
}

func (r *Resolver) Roots() []string {
	return slices.Clone(r.roots)
}

func (r *Resolver) abs(p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.baseDir, p)
	}
	return filepath.Clean(p)
}

// IsPathLike reports whether s names a file rather than a workflow.
func IsPathLike(s string) bool {
	return strings.ContainsAny(s, `/\`) || filepath.Ext(s) != ""
}

// Resolve finds one definition. Path-like input is loaded directly; otherwise the name is
// matched against file names in each root and its first-level subfolders, then against the
// declared names of every discoverable definition.
func (r *Resolver) Resolve(nameOrPath string) (*internal.ResolvedDefinition, error) {
	nameOrPath = strings.TrimSpace(nameOrPath)
	if nameOrPath == "" {
		return nil, errors.New("workflow name is required")
	}
	if IsPathLike(nameOrPath) {
		return r.loadPath(nameOrPath)
	}
	for _, root := range r.existingRoots() {
		path, ok := r.findByFilename(root, nameOrPath)
		if ok {
			return loader.LoadTask(r.fs, path)
		}
	}
	for _, candidate := range r.candidates() {
		def, err := loader.LoadTask(r.fs, candidate)
		if err != nil {
			util.Logger().Debug("skipping definition", "path", candidate, "err", err)
			continue
		}
		if def.Definition.Name == nameOrPath {
			return def, nil
		}
	}
	return nil, &internal.DefinitionNotFoundError{Name: nameOrPath, Roots: r.Roots()}
}

// List returns every discoverable definition, deduplicated by declared name with the first
// found winning. Malformed files are skipped.
func (r *Resolver) List() []*internal.ResolvedDefinition {
	reg := loader.NewRegistry()
	for _, candidate := range r.candidates() {
		def, err := loader.LoadTask(r.fs, candidate)
		if err != nil {
			util.Logger().Debug("skipping definition", "path", candidate, "err", err)
			continue
		}
		if !reg.Register(def) {
			util.Logger().Debug("definition shadowed", "name", def.Definition.Name, "path", candidate)
		}
	}
	return reg.All()
}

func (r *Resolver) loadPath(p string) (*internal.ResolvedDefinition, error) {
	abs := r.abs(p)
	info, err := r.fs.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &internal.DefinitionNotFoundError{Name: p, Roots: []string{abs}}
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", abs)
	}
	return loader.LoadTask(r.fs, abs)
}

func (r *Resolver) existingRoots() []string {
	var out []string
	for _, root := range r.roots {
		if ok, _ := afero.DirExists(r.fs, root); ok {
			out = append(out, root)
		}
	}
	return out
}

func (r *Resolver) findByFilename(root, name string) (string, bool) {
	if p, ok := r.fileWithExt(root, name); ok {
		return p, true
	}
	entries, err := afero.ReadDir(r.fs, root)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() || hidden(e.Name()) {
			continue
		}
		if p, ok := r.fileWithExt(filepath.Join(root, e.Name()), name); ok {
			return p, true
		}
	}
	return "", false
}

// fileWithExt finds dir/name with a definition extension, lower case first.
func (r *Resolver) fileWithExt(dir, name string) (string, bool) {
	for _, ext := range loader.Extensions() {
		for _, e := range []string{ext, strings.ToUpper(ext)} {
			p := filepath.Join(dir, name+e)
			info, err := r.fs.Stat(p)
			if err == nil && !info.IsDir() {
				return p, true
			}
		}
	}
	return "", false
}

// candidates lists definition files of every root, root by root and shallow files first.
func (r *Resolver) candidates() []string {
	var out []string
	for _, root := range r.existingRoots() {
		out = append(out, r.scanRoot(root)...)
	}
	return out
}

func (r *Resolver) scanRoot(root string) []string {
	fsys := afero.NewIOFS(afero.NewBasePathFs(r.fs, root))
	var out []string
	for depth := 0; depth <= r.maxDepth; depth++ {
		pattern := strings.Repeat("*/", depth) + "*.*"
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			util.Logger().Debug("glob failed", "root", root, "pattern", pattern, "err", err)
			continue
		}
		slices.Sort(matches)
		for _, m := range matches {
			if excluded(m) || !loader.Supported(m) {
				continue
			}
			out = append(out, filepath.Join(root, filepath.FromSlash(m)))
		}
	}
	return out
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func excluded(rel string) bool {
	parts := strings.Split(rel, "/")
	for _, p := range parts {
		if hidden(p) {
			return true
		}
	}
	return strings.HasPrefix(parts[len(parts)-1], ExcludeMarker)
}
