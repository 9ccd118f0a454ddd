package sof

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// errKind names the class of a materialization failure for logging
func errKind(err error) string {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	case errors.Is(err, fs.ErrNotExist):
		return "vanished"
	default:
		return "io"
	}
}

// storeFile copies src into the store unless an entry already exists and
// returns the entry path. A failed copy removes its partial entry.
func storeFile(store, src string, mode fs.FileMode) (string, error) {
	dst := filepath.Join(store, src)
	if _, err := os.Lstat(dst); err == nil {
		return dst, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode.Perm())
	if errors.Is(err, fs.ErrExist) {
		return dst, nil
	}
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	// the creation mode was subject to umask
	if err := out.Chmod(mode.Perm()); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	return dst, out.Close()
}

// hardlink links the store entry at dst. An existing link is success.
func hardlink(entry, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Link(entry, dst); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	return nil
}

// symlink recreates a link with the given text. An existing entry is kept.
func symlink(text, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Symlink(text, dst); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	return nil
}
