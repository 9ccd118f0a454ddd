package binary

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kkernick/sb/pkg/library"
	"github.com/sirupsen/logrus"
)

const maxScript = 4 << 20

// Resolver is a binary resolution session
type Resolver struct {
	// Path is the list of directories searched for bare names, $PATH when empty
	Path string
	// CacheDir holds script scan caches, caching is disabled when empty
	CacheDir string
	// Refresh ignores existing script caches
	Refresh bool
	// Builtins are never treated as commands, DefaultBuiltins() when nil
	Builtins library.Set
	Log      logrus.FieldLogger

	visited library.Set
}

func (r *Resolver) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

// Add resolves nameOrPath and every command reachable from it through
// scripts. It returns the binaries first visited by this call.
func (r *Resolver) Add(ctx context.Context, nameOrPath string) (library.Set, error) {
	if r.visited == nil {
		r.visited = make(library.Set)
	}
	if r.Builtins == nil {
		r.Builtins = DefaultBuiltins()
	}

	ret := make(library.Set)
	queue := []string{nameOrPath}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := queue[0]
		queue = queue[1:]

		p, ok := r.Lookup(name)
		if !ok {
			r.log().WithField("name", name).Debug("binary not found")
			continue
		}
		if r.visited.Has(p) {
			continue
		}
		r.visited.Add(p)
		ret.Add(p)
		queue = append(queue, r.children(p)...)
	}
	return ret, nil
}

// Visited returns every binary resolved in this session
func (r *Resolver) Visited() library.Set {
	ret := make(library.Set, len(r.visited))
	ret.Merge(r.visited)
	return ret
}

// Lookup returns the canonical path of name. Absolute paths are checked
// for existence, other names are searched in Path.
func (r *Resolver) Lookup(name string) (string, bool) {
	if filepath.IsAbs(name) {
		return existing(name)
	}
	if strings.ContainsRune(name, '/') {
		return "", false
	}
	path := r.Path
	if path == "" {
		path = os.Getenv("PATH")
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() && fi.Mode().Perm()&0o111 != 0 {
			return existing(p)
		}
	}
	return "", false
}

// existing prefers the canonical location of p and falls back to p itself
// on systems where the legacy directories are not symlinks.
func existing(p string) (string, bool) {
	if c := Canonical(p); fileExists(c) {
		return c, true
	}
	if fileExists(p) {
		return filepath.Clean(p), true
	}
	return "", false
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Canonical rewrites /bin, /sbin and /usr/sbin to /usr/bin
func Canonical(p string) string {
	p = filepath.Clean(p)
	for _, prefix := range []string{"/bin/", "/sbin/", "/usr/sbin/"} {
		if strings.HasPrefix(p, prefix) {
			return "/usr/bin/" + p[len(prefix):]
		}
	}
	return p
}

// children returns the resolved commands a script at p refers to,
// consulting the script cache first.
func (r *Resolver) children(p string) []string {
	var cachePath string
	if r.CacheDir != "" {
		cachePath = filepath.Join(r.CacheDir, library.CacheName(p, library.BinaryCacheSuffix))
		if !r.Refresh {
			if s, ok := library.ReadCache(cachePath); ok {
				return s.Sorted()
			}
		}
	}

	interp, body, ok := readScript(p)
	if !ok {
		return nil
	}
	r.log().WithField("path", p).Debug("scan script")

	names := interp
	if shells[interpreterName(interp)] {
		names = append(names, Scan(body, p, r.Builtins)...)
	}
	found := make(library.Set)
	for _, n := range names {
		if c, ok := r.Lookup(n); ok && c != p {
			found.Add(c)
		}
	}
	if cachePath != "" {
		if err := library.WriteCache(cachePath, found); err != nil {
			r.log().WithField("path", p).WithError(err).Warn("script cache")
		}
	}
	return found.Sorted()
}

// readScript returns the interpreter directive tokens and body of the
// script at p. Files without a directive, unreadable files and files that
// are not UTF-8 are not scripts.
func readScript(p string) ([]string, string, bool) {
	f, err := os.Open(p)
	if err != nil {
		return nil, "", false
	}
	defer f.Close()

	header := make([]byte, 2)
	if _, err := io.ReadFull(f, header); err != nil || string(header) != "#!" {
		return nil, "", false
	}
	content, err := io.ReadAll(io.LimitReader(f, maxScript))
	if err != nil || !utf8.Valid(content) {
		return nil, "", false
	}
	line, body, _ := bytes.Cut(content, []byte("\n"))
	return strings.Fields(string(line)), string(body), true
}

// interpreterName returns the base name of the interpreter, looking
// through env(1).
func interpreterName(tokens []string) string {
	for i, t := range tokens {
		base := filepath.Base(t)
		if i == 0 && base == "env" {
			continue
		}
		if strings.HasPrefix(t, "-") || strings.ContainsRune(t, '=') {
			continue
		}
		return base
	}
	return ""
}
