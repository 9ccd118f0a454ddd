// Package mount describes the filesystem view of a sandbox as an ordered
// plan of primitive operations, rendered as bubblewrap(1) arguments by
// the launcher.
package mount

import (
	"fmt"
	"os"
)

// Kind is the type of a mount operation
type Kind string

// Operation kinds
const (
	KindBind    Kind = "bind"
	KindRoBind  Kind = "ro-bind"
	KindSymlink Kind = "symlink"
	KindOverlay Kind = "overlay"
	KindSetenv  Kind = "setenv"
	KindDir     Kind = "dir"
	KindProc    Kind = "proc"
	KindDev     Kind = "dev"
	KindTmpfs   Kind = "tmpfs"
)

// Op is a single mount operation
type Op struct {
	Kind Kind `yaml:"kind"`
	// Source is the host path of binds and overlays, or the link text of a symlink
	Source string `yaml:"source,omitempty"`
	// Target is the path inside the sandbox, or the variable name of setenv
	Target string `yaml:"target"`
	// Value is the value of setenv
	Value string `yaml:"value,omitempty"`
	// Try tolerates a missing source
	Try bool `yaml:"try,omitempty"`
}

// IsBind reports whether the operation exposes a host path
func (m *Op) IsBind() bool {
	return m.Kind == KindBind || m.Kind == KindRoBind || m.Kind == KindOverlay
}

// IsReadOnly reports whether the host path is exposed read-only
func (m *Op) IsReadOnly() bool {
	return m.Kind == KindRoBind || m.Kind == KindOverlay
}

// Args renders the operation as bubblewrap arguments
func (m *Op) Args() []string {
	flag := "--" + string(m.Kind)
	switch m.Kind {
	case KindBind, KindRoBind:
		if m.Try {
			flag += "-try"
		}
		return []string{flag, m.Source, m.Target}
	case KindSymlink:
		return []string{flag, m.Source, m.Target}
	case KindOverlay:
		// changes made inside the sandbox are discarded on exit
		return []string{"--overlay-src", m.Source, "--tmp-overlay", m.Target}
	case KindSetenv:
		return []string{flag, m.Target, m.Value}
	default:
		return []string{flag, m.Target}
	}
}

func (m Op) String() string {
	switch m.Kind {
	case KindBind, KindRoBind:
		flag := "rw"
		if m.IsReadOnly() {
			flag = "ro"
		}
		if m.Try {
			flag += ",try"
		}
		return fmt.Sprintf("bind[%s:%s:%s]", m.Source, m.Target, flag)
	case KindSymlink:
		return fmt.Sprintf("symlink[%s->%s]", m.Target, m.Source)
	case KindOverlay:
		return fmt.Sprintf("overlay[%s:%s]", m.Source, m.Target)
	case KindSetenv:
		return fmt.Sprintf("setenv[%s=%s]", m.Target, m.Value)
	default:
		return fmt.Sprintf("%s[%s]", m.Kind, m.Target)
	}
}

// sourceMissing reports whether a bind operation refers to a host path
// that does not exist
func (m *Op) sourceMissing() bool {
	if !m.IsBind() {
		return false
	}
	_, err := os.Stat(m.Source)
	return os.IsNotExist(err)
}
