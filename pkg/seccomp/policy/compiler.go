// Package policy compiles an application's syscall allow list into a
// seccomp filter program and persists it next to a digest of its source,
// so an unchanged policy is never compiled twice.
package policy

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kkernick/sb/pkg/memfd"
	"github.com/kkernick/sb/pkg/seccomp"
	"github.com/kkernick/sb/pkg/seccomp/group"
	"github.com/kkernick/sb/pkg/seccomp/libseccomp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"
)

// UnknownSyscallError is returned for an entry that is neither a group
// nor a syscall of the native architecture
type UnknownSyscallError = libseccomp.UnknownSyscallError

// ErrEmptyPolicy is returned when enforcing a policy that allows nothing
var ErrEmptyPolicy = errors.New("policy: cannot enforce an empty policy")

const memfdName = "sb-seccomp"

// Options describes one compilation
type Options struct {
	// Syscalls are explicit syscall names, numbers and group names
	Syscalls []string
	// Source is the persisted syscall list, optional
	Source string
	// Filter and Hash cache the compiled program and its digest, optional
	Filter string
	Hash   string
	// Permissive logs instead of denying syscalls outside the allow list
	Permissive bool
	// Refresh compiles even when the cached digest matches
	Refresh bool
	// Compact rewrites Source in group form
	Compact bool
}

// Compiled is a ready to load filter program
type Compiled struct {
	Filter  seccomp.Filter
	Default seccomp.Action
	// Allow is the sorted allow list by syscall name
	Allow []string
	// Summary is Allow expressed with groups where they apply
	Summary []string
	Digest  string
	// Cached is set when Filter was read back instead of compiled
	Cached bool

	builder *libseccomp.Builder
}

// File returns a sealed memfd holding the program, for inheritance by
// the launcher. The caller closes it.
func (c *Compiled) File() (*os.File, error) {
	return memfd.DupToMemfd(memfdName, bytes.NewReader(c.Filter))
}

// Load installs the filter in the calling process and all its threads
func (c *Compiled) Load() error {
	return c.builder.Load()
}

// Compiler compiles syscall policies
type Compiler struct {
	Log logrus.FieldLogger
}

func (c *Compiler) log() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

// Compile expands, validates and compiles the policy described by o
func (c *Compiler) Compile(o Options) (*Compiled, error) {
	entries := append([]string(nil), o.Syscalls...)
	if o.Source != "" {
		persisted, err := ReadSource(o.Source)
		if err != nil {
			return nil, err
		}
		entries = append(entries, persisted...)
		if o.Permissive {
			if err := c.createSource(o.Source); err != nil {
				return nil, err
			}
		}
	}

	allow, err := Resolve(entries)
	if err != nil {
		return nil, err
	}
	def := seccomp.ActionErrno.WithReturnCode(int16(unix.EPERM))
	if o.Permissive {
		def = seccomp.ActionLog
	} else if len(allow) == 0 {
		return nil, ErrEmptyPolicy
	}

	ret := &Compiled{
		Default: def,
		Allow:   allow,
		Summary: group.Compress(allow),
		Digest:  Digest(def, allow),
		builder: &libseccomp.Builder{
			Allow:      allow,
			Default:    def,
			NoNewPrivs: true,
			TSync:      true,
		},
	}
	log := c.log().WithField("digest", ret.Digest)

	if o.Compact && o.Source != "" {
		if err := WriteSource(o.Source, ret.Summary); err != nil {
			return nil, err
		}
		log.WithField("entries", len(ret.Summary)).Info("syscall source compacted")
	}

	if !o.Refresh && o.Filter != "" && o.Hash != "" {
		if f, ok := readCached(o.Filter, o.Hash, ret.Digest); ok {
			log.Debug("seccomp filter cache hit")
			ret.Filter, ret.Cached = f, true
			return ret, nil
		}
	}

	if ret.Filter, err = ret.builder.Build(); err != nil {
		return nil, err
	}
	log.WithField("syscalls", len(allow)).WithField("instructions", ret.Filter.Len()).Debug("seccomp filter compiled")

	if o.Filter != "" && o.Hash != "" {
		// a filter without its digest is never reused
		os.Remove(o.Hash)
		if err := writeFile(o.Filter, ret.Filter); err != nil {
			return nil, errors.Wrap(err, "policy: write filter")
		}
		if err := writeFile(o.Hash, []byte(ret.Digest+"\n")); err != nil {
			return nil, errors.Wrap(err, "policy: write digest")
		}
	}
	return ret, nil
}

// createSource creates an empty source file when there is none, for
// Learn to fill from the log of a permissive run
func (c *Compiler) createSource(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}
	if err := writeFile(path, nil); err != nil {
		return errors.Wrap(err, "policy: create source")
	}
	c.log().WithField("path", path).Info("created empty syscall source, populate it with a trace")
	return nil
}

// Resolve expands groups and maps every entry to its syscall name. The
// result is sorted and deduplicated. An unknown entry is an
// *UnknownSyscallError.
func Resolve(entries []string) ([]string, error) {
	set := make(map[string]struct{})
	for _, e := range group.Expand(entries) {
		n, err := libseccomp.Resolve(e)
		if err != nil {
			return nil, err
		}
		set[n] = struct{}{}
	}
	ret := make([]string, 0, len(set))
	for n := range set {
		ret = append(ret, n)
	}
	sort.Strings(ret)
	return ret, nil
}

// Digest identifies a policy by its default action and allow list
func Digest(def seccomp.Action, allow []string) string {
	h := blake3.New()
	h.Write([]byte(def.String() + "\n" + strings.Join(allow, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

func readCached(filter, hash, digest string) (seccomp.Filter, bool) {
	h, err := os.ReadFile(hash)
	if err != nil || strings.TrimSpace(string(h)) != digest {
		return nil, false
	}
	b, err := os.ReadFile(filter)
	if err != nil {
		return nil, false
	}
	f := seccomp.Filter(b)
	if f.Validate() != nil {
		return nil, false
	}
	return f, true
}

func writeFile(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
