package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kkernick/sb/pkg/ldd"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// DefaultRoot is the system library root
const DefaultRoot = "/usr/lib"

const wildcardChars = "*?["

// Resolver is a library resolution session
type Resolver struct {
	// Querier reports the direct dependencies of a file
	Querier ldd.Querier
	// Root resolves bare library names and wildcard patterns, DefaultRoot when empty
	Root string
	// CacheDir holds directory closure caches, caching is disabled when empty
	CacheDir string
	// Refresh ignores existing directory caches
	Refresh bool
	// Workers bounds concurrent queries, runtime.NumCPU() when <= 0
	Workers int
	Log     logrus.FieldLogger

	closure   Set
	searched  Set
	wildcards Set
	expanded  bool
}

func (r *Resolver) init() {
	if r.closure == nil {
		r.closure = make(Set)
		r.searched = make(Set)
		r.wildcards = make(Set)
	}
}

func (r *Resolver) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

func (r *Resolver) root() string {
	if r.Root == "" {
		return DefaultRoot
	}
	return r.Root
}

func (r *Resolver) workers() int {
	if r.Workers <= 0 {
		return runtime.NumCPU()
	}
	return r.Workers
}

// Resolve adds target and everything it needs to the closure. It returns
// the paths this call added, which is empty when target was already
// searched or is a wildcard pattern. A relative target is taken relative
// to Root.
func (r *Resolver) Resolve(ctx context.Context, target string) (Set, error) {
	r.init()
	target = r.abs(target)
	ret := make(Set)
	if r.searched.Has(target) {
		return ret, nil
	}
	r.searched.Add(target)

	if IsWildcard(target) {
		r.wildcards.Add(target)
		return ret, nil
	}
	fi, err := os.Stat(target)
	if err != nil {
		r.logAbsent(target, err)
		return ret, nil
	}
	if fi.IsDir() {
		return r.resolveDir(ctx, target)
	}
	ret.Add(target)
	r.closure.Add(target)
	if err := r.expand(ctx, []string{target}, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// expand runs the breadth first walk from frontier, whose members are
// already searched and in the closure. New paths are added to ret.
func (r *Resolver) expand(ctx context.Context, frontier []string, ret Set) error {
	for len(frontier) > 0 {
		deps, err := r.queryAll(ctx, frontier)
		if err != nil {
			return err
		}
		var next []string
		for _, d := range deps {
			for _, p := range d {
				if r.searched.Has(p) {
					continue
				}
				r.searched.Add(p)
				switch {
				case IsWildcard(p):
					r.wildcards.Add(p)
					continue
				case isDir(p):
					s, err := r.resolveDir(ctx, p)
					if err != nil {
						return err
					}
					ret.Merge(s)
					continue
				}
				ret.Add(p)
				r.closure.Add(p)
				next = append(next, p)
			}
		}
		frontier = next
	}
	return nil
}

// queryAll queries every path on the bounded pool. Each worker writes only
// its own slot. Query failures are logged and yield no dependencies.
func (r *Resolver) queryAll(ctx context.Context, paths []string) ([][]string, error) {
	ret := make([][]string, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			deps, err := r.Querier.Query(ctx, p)
			if err != nil {
				r.log().WithField("path", p).WithError(err).Debug("query dependencies")
				return nil
			}
			ret[i] = deps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}

// resolveDir returns the external dependencies of everything under dir
// together with dir itself. The dependencies join the closure unsearched.
func (r *Resolver) resolveDir(ctx context.Context, dir string) (Set, error) {
	var cachePath string
	if r.CacheDir != "" {
		cachePath = filepath.Join(r.CacheDir, CacheName(dir, LibraryCacheSuffix))
	}
	var (
		deps Set
		ok   bool
	)
	if cachePath != "" && !r.Refresh {
		deps, ok = ReadCache(cachePath)
	}
	if !ok {
		var err error
		if deps, err = r.queryDir(ctx, dir); err != nil {
			return nil, err
		}
		if cachePath != "" {
			if err := WriteCache(cachePath, deps); err != nil {
				r.log().WithField("dir", dir).WithError(err).Warn("directory cache")
			}
		}
	} else {
		r.log().WithField("dir", dir).Debug("directory cache hit")
	}

	ret := NewSet(dir)
	ret.Merge(deps)
	r.closure.Merge(ret)
	return ret, nil
}

func (r *Resolver) queryDir(ctx context.Context, dir string) (Set, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			r.log().WithField("path", p).WithError(err).Debug("walk")
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if fi, err := d.Info(); err == nil && fi.Mode().Perm()&0o111 != 0 {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	deps, err := r.queryAll(ctx, files)
	if err != nil {
		return nil, err
	}
	prefix := dir + string(filepath.Separator)
	ret := make(Set)
	for _, d := range deps {
		for _, p := range d {
			if !strings.HasPrefix(p, prefix) {
				ret.Add(p)
			}
		}
	}
	return ret, nil
}

// ExpandWildcards matches the deferred patterns against the executable
// entries of Root once and adds the matches to the closure unsearched.
// Matching directories are resolved as directories by Settle. Later calls
// return an empty set.
func (r *Resolver) ExpandWildcards() (Set, error) {
	r.init()
	ret := make(Set)
	if r.expanded {
		return ret, nil
	}
	r.expanded = true
	if len(r.wildcards) == 0 {
		return ret, nil
	}
	root := r.root()
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	patterns := r.wildcards.Sorted()
	for _, e := range entries {
		p := filepath.Join(root, e.Name())
		for _, pattern := range patterns {
			if m, _ := filepath.Match(filepath.Base(pattern), e.Name()); m {
				if unix.Access(p, unix.X_OK) == nil {
					ret.Add(p)
				}
				break
			}
		}
	}
	r.closure.Merge(ret)
	r.log().WithField("patterns", len(patterns)).WithField("matches", len(ret)).Debug("wildcards expanded")
	return ret, nil
}

// Settle resolves closure members that were never searched until the
// closure stops growing.
func (r *Resolver) Settle(ctx context.Context) error {
	r.init()
	for {
		pending := r.unsearched()
		if len(pending) == 0 {
			return nil
		}
		var frontier []string
		for _, p := range pending {
			r.searched.Add(p)
			if isDir(p) {
				if _, err := r.resolveDir(ctx, p); err != nil {
					return err
				}
				continue
			}
			frontier = append(frontier, p)
		}
		if err := r.expand(ctx, frontier, make(Set)); err != nil {
			return err
		}
	}
}

func (r *Resolver) unsearched() []string {
	var ret []string
	for p := range r.closure {
		if !r.searched.Has(p) {
			ret = append(ret, p)
		}
	}
	return ret
}

// Seed marks paths as resolved members of the closure
func (r *Resolver) Seed(paths ...string) {
	r.init()
	r.closure.Add(paths...)
	r.searched.Add(paths...)
}

// Closure returns a copy of the closure
func (r *Resolver) Closure() Set {
	r.init()
	ret := make(Set, len(r.closure))
	ret.Merge(r.closure)
	return ret
}

// Searched reports whether path was processed in this session
func (r *Resolver) Searched(path string) bool {
	r.init()
	return r.searched.Has(r.abs(path))
}

// Wildcards returns the deferred patterns
func (r *Resolver) Wildcards() []string {
	r.init()
	return r.wildcards.Sorted()
}

func (r *Resolver) abs(p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.root(), p)
	}
	return filepath.Clean(p)
}

func (r *Resolver) logAbsent(p string, err error) {
	l := r.log().WithField("path", p).WithError(err)
	if os.IsNotExist(err) {
		l.Debug("skip missing")
		return
	}
	l.Warn("skip")
}

// IsWildcard reports whether p is a name pattern
func IsWildcard(p string) bool {
	return strings.ContainsAny(p, wildcardChars)
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
