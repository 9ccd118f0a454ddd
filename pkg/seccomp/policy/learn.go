package policy

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/kkernick/sb/pkg/seccomp/libseccomp"
	"github.com/pkg/errors"
)

const maxTraceLine = 1 << 20

// TraceSyscalls returns the sorted syscall names found in a strace(1) log.
// The syscall of a line is the text before '(' in its first field holding
// one; names unknown on the native architecture are dropped.
func TraceSyscalls(r io.Reader) ([]string, error) {
	set := make(map[string]struct{})
	s := bufio.NewScanner(r)
	s.Buffer(nil, maxTraceLine)
	for s.Scan() {
		name := traceName(s.Text())
		if name == "" {
			continue
		}
		// numbers resolve to a different name and are not trace output
		if n, err := libseccomp.Resolve(name); err == nil && n == name {
			set[name] = struct{}{}
		}
	}
	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "policy: read trace")
	}
	ret := make([]string, 0, len(set))
	for n := range set {
		ret = append(ret, n)
	}
	sort.Strings(ret)
	return ret, nil
}

func traceName(line string) string {
	for _, f := range strings.Fields(line) {
		if i := strings.IndexByte(f, '('); i >= 0 {
			return f[:i]
		}
	}
	return ""
}

// Learn merges the syscalls of a strace(1) log into the source file at
// path and returns those the source did not allow yet. Existing entries
// are kept as they are, comments are dropped. The file is only written
// when something was added or it did not exist.
func Learn(path string, trace io.Reader) ([]string, error) {
	traced, err := TraceSyscalls(trace)
	if err != nil {
		return nil, err
	}
	existing, err := ReadSource(path)
	if err != nil {
		return nil, err
	}
	allowed, err := Resolve(existing)
	if err != nil {
		return nil, err
	}
	covered := make(map[string]struct{}, len(allowed))
	for _, n := range allowed {
		covered[n] = struct{}{}
	}

	var added []string
	for _, n := range traced {
		if _, ok := covered[n]; !ok {
			added = append(added, n)
		}
	}
	if len(added) == 0 {
		if _, err := os.Stat(path); err == nil {
			return nil, nil
		}
	}
	if err := WriteSource(path, append(existing, added...)); err != nil {
		return nil, err
	}
	return added, nil
}
