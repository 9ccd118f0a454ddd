package ldd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnexpectedSeparator is returned when the second segment of a long entry is not "=>".
	ErrUnexpectedSeparator = errors.New("ldd: unexpected separator")
	// ErrBadLocationFormat is returned for an incorrectly formatted load address.
	ErrBadLocationFormat = errors.New("ldd: bad location format")
	// ErrPathNotAbsolute is returned when a resolved path is relative.
	ErrPathNotAbsolute = errors.New("ldd: path is not absolute")
)

// EntryUnexpectedSegmentsError is returned for a line with an unexpected number of segments.
type EntryUnexpectedSegmentsError string

func (e EntryUnexpectedSegmentsError) Error() string {
	return fmt.Sprintf("ldd: unexpected segments in entry %q", string(e))
}

const (
	separator      = "=>"
	locationPrefix = "(0x"
	locationSuffix = ")"
)

// Entry is one line of ldd(1) output.
type Entry struct {
	// Name is the requested object, a soname or an absolute path.
	Name string
	// Path is the resolved object, empty for the vdso and missing objects.
	Path string
	// NotFound is set for "name => not found" lines.
	NotFound bool
	// Location is the load address.
	Location uint64
}

// Resolved returns the absolute path of the object on this system, or
// the empty string when there is none.
func (e *Entry) Resolved() string {
	switch {
	case e.NotFound:
		return ""
	case e.Path != "":
		return e.Path
	case filepath.IsAbs(e.Name):
		return e.Name
	}
	return ""
}

func (e *Entry) decodeLocation(segment string) error {
	if len(segment) <= len(locationPrefix)+len(locationSuffix) ||
		!strings.HasPrefix(segment, locationPrefix) ||
		!strings.HasSuffix(segment, locationSuffix) {
		return ErrBadLocationFormat
	}
	v, err := strconv.ParseUint(segment[len(locationPrefix):len(segment)-len(locationSuffix)], 16, 64)
	if err != nil {
		return ErrBadLocationFormat
	}
	e.Location = v
	return nil
}

// UnmarshalText parses a line of ldd(1) output
func (e *Entry) UnmarshalText(data []byte) error {
	segments := strings.Fields(string(data))
	switch len(segments) {
	case 2: // /lib/ld-musl-x86_64.so.1 (0x7f04d14ef000)
		e.Name = segments[0]
		return e.decodeLocation(segments[1])

	case 3: // linux-vdso.so.1 =>  (0x00007ffc...), older glibc
		if segments[1] != separator {
			return ErrUnexpectedSeparator
		}
		e.Name = segments[0]
		return e.decodeLocation(segments[2])

	case 4:
		if segments[1] != separator {
			return ErrUnexpectedSeparator
		}
		e.Name = segments[0]
		// libfoo.so.1 => not found
		if segments[2] == "not" && segments[3] == "found" {
			e.NotFound = true
			return nil
		}
		// libc.so.6 => /usr/lib/libc.so.6 (0x7f04d14ef000)
		if !filepath.IsAbs(segments[2]) {
			return ErrPathNotAbsolute
		}
		e.Path = segments[2]
		return e.decodeLocation(segments[3])
	}
	return EntryUnexpectedSegmentsError(data)
}

// ignoredLines are informational lines that carry no dependency
var ignoredLines = [][]byte{
	[]byte("statically linked"),
	[]byte("not a dynamic executable"),
	[]byte("Not a valid dynamic program"),
}

func ignored(line []byte) bool {
	for _, m := range ignoredLines {
		if bytes.Contains(line, m) {
			return true
		}
	}
	return false
}

// Decode reads every entry from r. Blank and informational lines are
// skipped. Malformed lines are skipped too: every well formed entry is
// returned together with the error of the first malformed line.
func Decode(r io.Reader) ([]*Entry, error) {
	var (
		entries []*Entry
		first   error
	)
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := bytes.TrimSpace(s.Bytes())
		if len(line) == 0 || ignored(line) {
			continue
		}
		e := new(Entry)
		if err := e.UnmarshalText(line); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		entries = append(entries, e)
	}
	if err := s.Err(); err != nil {
		return entries, err
	}
	return entries, first
}

// Parse returns the entries decoded from p.
func Parse(p []byte) ([]*Entry, error) { return Decode(bytes.NewReader(p)) }
