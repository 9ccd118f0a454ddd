//go:build !linux

package memfd

import (
	"io"
	"os"
	"runtime"

	"github.com/pkg/errors"
)

var errUnsupported = errors.Errorf("memfd: not supported on %s", runtime.GOOS)

// New is only supported on linux
func New(string) (*os.File, error) { return nil, errUnsupported }

// DupToMemfd is only supported on linux
func DupToMemfd(string, io.Reader) (*os.File, error) { return nil, errUnsupported }

// Sealed is only supported on linux
func Sealed(*os.File) (bool, error) { return false, errUnsupported }
