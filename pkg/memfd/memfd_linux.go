// Package memfd provides sealed, read only in memory files. The seccomp
// compiler uses them to hand a filter program to the sandbox launcher as
// an inherited file descriptor without touching the disk.
package memfd

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	createFlag = unix.MFD_CLOEXEC | unix.MFD_ALLOW_SEALING
	roSeal     = unix.F_SEAL_SEAL | unix.F_SEAL_SHRINK | unix.F_SEAL_GROW | unix.F_SEAL_WRITE
)

// New creates an empty memfd, the caller closes it
func New(name string) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, createFlag)
	if err != nil {
		return nil, errors.Wrap(err, "memfd: create")
	}
	return os.NewFile(uintptr(fd), "memfd:"+name), nil
}

// DupToMemfd copies reader into a new memfd and seals it read only. The
// returned file is positioned at offset 0. Close-on-exec is set; os/exec
// clears it for ExtraFiles.
func DupToMemfd(name string, reader io.Reader) (*os.File, error) {
	file, err := New(name)
	if err != nil {
		return nil, err
	}
	if err := fill(file, reader); err != nil {
		file.Close()
		return nil, err
	}
	return file, nil
}

func fill(file *os.File, reader io.Reader) error {
	if _, err := file.ReadFrom(reader); err != nil {
		return errors.Wrap(err, "memfd: copy")
	}
	if _, err := unix.FcntlInt(file.Fd(), unix.F_ADD_SEALS, roSeal); err != nil {
		return errors.Wrap(err, "memfd: seal")
	}
	_, err := file.Seek(0, io.SeekStart)
	return errors.Wrap(err, "memfd: seek")
}

// Sealed reports whether the file carries every read only seal
func Sealed(f *os.File) (bool, error) {
	seals, err := unix.FcntlInt(f.Fd(), unix.F_GET_SEALS, 0)
	if err != nil {
		return false, errors.Wrap(err, "memfd: get seals")
	}
	return seals&roSeal == roSeal, nil
}
