//go:build !linux

package libseccomp

import (
	"fmt"
	"runtime"

	"github.com/kkernick/sb/pkg/seccomp"
)

var errNotImplemented = fmt.Errorf("libseccomp: unsupported on platform %s", runtime.GOOS)

// Builder is used to build the filter
type Builder struct {
	Allow      []string
	Default    seccomp.Action
	NoNewPrivs bool
	TSync      bool
}

// Build builds the filter
func (b *Builder) Build() (seccomp.Filter, error) {
	return nil, errNotImplemented
}

// Load installs the filter into the calling process
func (b *Builder) Load() error {
	return errNotImplemented
}
