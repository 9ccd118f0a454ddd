// Package cmdcache persists the mount plan of an application keyed by the
// digest of its configuration.
//
// The cache file holds the hex digest on its first line and the YAML plan
// after it. A plan is only served while the shared object folder it
// refers to still exists.
package cmdcache

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/kkernick/sb/pkg/config"
	"github.com/kkernick/sb/pkg/mount"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Status is the outcome of a lookup
type Status int

// Lookup outcomes
const (
	// Miss means the file is absent, unreadable or for another digest
	Miss Status = iota
	// Stale means the digest matches but the shared object folder is gone
	Stale
	// Hit means the plan can be used as is
	Hit
)

func (s Status) String() string {
	switch s {
	case Hit:
		return "hit"
	case Stale:
		return "stale"
	default:
		return "miss"
	}
}

// Cache is the command cache of one application
type Cache struct {
	// Path is the cache file
	Path string
	// SOF is the shared object folder the cached plan refers to
	SOF string
}

// Lookup returns the cached plan for digest. The plan is returned for
// Stale lookups as well.
func (c *Cache) Lookup(digest config.Digest) (*mount.Plan, Status) {
	b, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, Miss
	}
	line, rest, ok := bytes.Cut(b, []byte("\n"))
	if !ok {
		return nil, Miss
	}
	if d, ok := config.ParseDigest(string(line)); !ok || d != digest {
		return nil, Miss
	}
	p := new(mount.Plan)
	if err := yaml.Unmarshal(rest, p); err != nil {
		return nil, Miss
	}
	if fi, err := os.Stat(c.SOF); err != nil || !fi.IsDir() {
		return p, Stale
	}
	return p, Hit
}

// Store replaces the cache file. The new content is written to a
// temporary file in the same directory and renamed over the old one.
func (c *Cache) Store(digest config.Digest, p *mount.Plan) error {
	body, err := yaml.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "cmdcache: encode plan")
	}
	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "cmdcache: create dir")
	}
	f, err := os.CreateTemp(dir, ".cmd.cache.*")
	if err != nil {
		return errors.Wrap(err, "cmdcache: create temp")
	}
	defer os.Remove(f.Name())

	var buf bytes.Buffer
	buf.WriteString(digest.String())
	buf.WriteByte('\n')
	buf.Write(body)
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return errors.Wrap(err, "cmdcache: write")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "cmdcache: write")
	}
	if err := os.Rename(f.Name(), c.Path); err != nil {
		return errors.Wrap(err, "cmdcache: rename")
	}
	return nil
}
