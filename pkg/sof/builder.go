package sof

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kkernick/sb/pkg/library"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultRoots are the recognized system library and binary roots
var DefaultRoots = []string{"/usr/lib", "/usr/bin"}

// DirectoryBind is a closure directory exposed wholesale instead of
// being linked file by file
type DirectoryBind struct {
	Source string
	Target string
}

// Builder materializes the closure of a library resolution session
type Builder struct {
	Resolver *library.Resolver
	// Store is the shared runtime store
	Store string
	// Roots limits the paths that may be materialized, DefaultRoots when empty
	Roots []string
	// LibraryCache receives the settled closure, skipped when empty
	LibraryCache string
	// Workers bounds concurrent copies, runtime.NumCPU() when <= 0
	Workers int
	Log     logrus.FieldLogger
}

func (b *Builder) log() logrus.FieldLogger {
	if b.Log == nil {
		return logrus.StandardLogger()
	}
	return b.Log
}

func (b *Builder) roots() []string {
	if len(b.Roots) == 0 {
		return DefaultRoots
	}
	return b.Roots
}

func (b *Builder) inRoots(p string) bool {
	for _, r := range b.roots() {
		if p == r || strings.HasPrefix(p, r+"/") {
			return true
		}
	}
	return false
}

// Materialize settles the closure and links every member into appDir,
// mirroring its real path. Directories are returned instead of linked.
// With force the application folder is rebuilt from scratch; the store is
// never removed. Failures on single members are logged and skipped.
func (b *Builder) Materialize(ctx context.Context, appDir string, force bool) ([]DirectoryBind, error) {
	if _, err := b.Resolver.ExpandWildcards(); err != nil {
		b.log().WithError(err).Warn("expand wildcards")
	}
	if err := b.Resolver.Settle(ctx); err != nil {
		return nil, errors.Wrap(err, "sof: settle closure")
	}
	closure := b.Resolver.Closure()
	if b.LibraryCache != "" {
		if err := library.WriteCache(b.LibraryCache, closure); err != nil {
			b.log().WithError(err).Warn("library cache")
		}
	}

	if force {
		if err := os.RemoveAll(appDir); err != nil {
			return nil, errors.Wrap(err, "sof: remove application folder")
		}
	}
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "sof: create application folder")
	}

	var dirs, files []string
	for _, p := range closure.Sorted() {
		if !b.inRoots(p) {
			b.log().WithField("path", p).Warn("outside library roots")
			continue
		}
		fi, err := os.Lstat(p)
		if err != nil {
			b.log().WithField("path", p).WithField("kind", errKind(err)).Debug("skip")
			continue
		}
		if fi.IsDir() {
			dirs = append(dirs, p)
		} else {
			files = append(files, p)
		}
	}
	files = notUnder(files, dirs)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers())
	for _, p := range files {
		p := p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := b.link(appDir, p); err != nil {
				b.log().WithField("path", p).WithField("kind", errKind(err)).WithError(err).Warn("materialize")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// empty mount points for the directory binds
	ret := make([]DirectoryBind, 0, len(dirs))
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(appDir, d), 0o755); err != nil {
			b.log().WithField("path", d).WithError(err).Warn("mount point")
		}
		ret = append(ret, DirectoryBind{Source: d, Target: d})
	}
	b.log().WithField("files", len(files)).WithField("dirs", len(dirs)).Info("materialized")
	return ret, nil
}

func (b *Builder) workers() int {
	if b.Workers <= 0 {
		return runtime.NumCPU()
	}
	return b.Workers
}

// link materializes one member. Symlinks are recreated with their own
// link text after their target is materialized.
func (b *Builder) link(appDir, p string) error {
	fi, err := os.Lstat(p)
	if err != nil {
		return err
	}
	dst := filepath.Join(appDir, p)

	if fi.Mode()&fs.ModeSymlink != 0 {
		text, err := os.Readlink(p)
		if err != nil {
			return err
		}
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			return err
		}
		if !b.inRoots(resolved) {
			return errors.Errorf("sof: %s links outside library roots", p)
		}
		if rfi, err := os.Stat(resolved); err == nil && rfi.Mode().IsRegular() {
			if err := b.linkFile(appDir, resolved, rfi.Mode()); err != nil {
				return err
			}
		}
		return symlink(text, dst)
	}
	if !fi.Mode().IsRegular() {
		return errors.Errorf("sof: %s is not a regular file", p)
	}
	return b.linkFile(appDir, p, fi.Mode())
}

func (b *Builder) linkFile(appDir, p string, mode fs.FileMode) error {
	entry, err := storeFile(b.Store, p, mode)
	if err != nil {
		return err
	}
	return hardlink(entry, filepath.Join(appDir, p))
}

// notUnder drops the files inside any of dirs
func notUnder(files, dirs []string) []string {
	if len(dirs) == 0 {
		return files
	}
	ret := files[:0]
next:
	for _, f := range files {
		for _, d := range dirs {
			if strings.HasPrefix(f, d+"/") {
				continue next
			}
		}
		ret = append(ret, f)
	}
	return ret
}
