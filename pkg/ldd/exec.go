package ldd

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/kkernick/sb/pkg/pipe"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	lddName = "ldd"
	// maxOutput bounds the captured stdout of a single query
	maxOutput = 1 << 20
)

var msgStatic = [][]byte{
	[]byte("not a dynamic executable"),
	[]byte("Not a valid dynamic program"),
}

// Querier returns the direct shared object dependencies of a file as
// normalized absolute paths. A file with no dynamic section has none.
type Querier interface {
	Query(ctx context.Context, path string) ([]string, error)
}

// Exec queries dependencies by running ldd(1)
type Exec struct {
	// Tool is the ldd binary, "ldd" from PATH when empty
	Tool string
	// Log receives lines that could not be parsed
	Log logrus.FieldLogger
}

// Query runs ldd on path and returns its normalized dependencies
func (q *Exec) Query(ctx context.Context, path string) ([]string, error) {
	tool := q.Tool
	if tool == "" {
		tool = lddName
	}

	stderr := new(bytes.Buffer)
	cmd := exec.CommandContext(ctx, tool, path)
	cmd.Stderr = stderr
	stdout, err := pipe.Output(cmd, maxOutput)
	if stdout == nil {
		return nil, errors.Wrap(err, "ldd: create pipe")
	}
	if err != nil {
		if cmd.Process == nil {
			return nil, errors.Wrapf(err, "ldd: start %s", tool)
		}
		for _, m := range msgStatic {
			if bytes.Contains(stderr.Bytes(), m) || bytes.Contains(stdout.Bytes(), m) {
				return nil, nil
			}
		}
		return nil, errors.Wrapf(err, "ldd: %s: %s", path, bytes.TrimSpace(stderr.Bytes()))
	}
	if stdout.Truncated() {
		return nil, errors.Errorf("ldd: %s: output exceeds %d bytes", path, maxOutput)
	}

	entries, err := Parse(stdout.Bytes())
	if err != nil {
		log := q.Log
		if log == nil {
			log = logrus.StandardLogger()
		}
		log.WithField("path", path).WithError(err).Debug("skipped malformed ldd lines")
	}
	return Dependencies(entries), nil
}
