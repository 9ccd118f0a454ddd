package policy

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// legacyHashPrefix marks a digest line older versions kept in the source
const legacyHashPrefix = "HASH:"

// ParseSource reads whitespace separated syscall names, numbers and group
// names. Text after '#' is a comment.
func ParseSource(r io.Reader) ([]string, error) {
	var ret []string
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := s.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, legacyHashPrefix) {
			continue
		}
		ret = append(ret, strings.Fields(line)...)
	}
	return ret, s.Err()
}

// ReadSource reads the source file at path, a missing file is empty
func ReadSource(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "policy: open source")
	}
	defer f.Close()
	ret, err := ParseSource(f)
	if err != nil {
		return nil, errors.Wrapf(err, "policy: read %s", path)
	}
	return ret, nil
}

// WriteSource replaces the source file with one entry per line
func WriteSource(path string, entries []string) error {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e)
		sb.WriteByte('\n')
	}
	return errors.Wrap(writeFile(path, []byte(sb.String())), "policy: write source")
}
