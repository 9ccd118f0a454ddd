package library

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	// LibraryCacheSuffix names directory closure cache files
	LibraryCacheSuffix = ".lib.cache"
	// BinaryCacheSuffix names script scan cache files
	BinaryCacheSuffix = ".bin.cache"
)

// CacheName derives the cache file name of path: every '/' becomes '.'
func CacheName(path, suffix string) string {
	return strings.ReplaceAll(filepath.Clean(path), "/", ".") + suffix
}

// ReadCache loads a set persisted by WriteCache. A missing, unreadable or
// malformed file reports false.
func ReadCache(path string) (Set, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	fields := strings.Fields(string(b))
	s := make(Set, len(fields))
	for _, f := range fields {
		if !filepath.IsAbs(f) {
			return nil, false
		}
		s[f] = struct{}{}
	}
	return s, true
}

// WriteCache persists s as a single line of sorted, space separated paths
func WriteCache(path string, s Set) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "library: create cache dir")
	}
	if err := os.WriteFile(path, []byte(s.String()+"\n"), 0o644); err != nil {
		return errors.Wrap(err, "library: write cache")
	}
	return nil
}
