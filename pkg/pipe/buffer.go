// Package pipe captures the output of external tools through an os pipe,
// keeping at most a fixed number of bytes.
package pipe

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// Buffer collects what is written to W. One byte past Max is kept so an
// overflow can be told apart from output of exactly Max bytes.
type Buffer struct {
	W   *os.File
	Max int64

	buf  bytes.Buffer
	done chan struct{}
}

// NewBuffer creates the pipe and starts draining its read end. The caller
// hands W to the writer and calls Wait once every writer has finished.
func NewBuffer(max int64) (*Buffer, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, errors.Wrap(err, "pipe: create")
	}
	b := &Buffer{W: w, Max: max, done: make(chan struct{})}
	go b.drain(r)
	return b, nil
}

func (b *Buffer) drain(r *os.File) {
	io.CopyN(&b.buf, r, b.Max+1)
	close(b.done)
	// the writer never blocks on a full pipe
	io.Copy(io.Discard, r)
	r.Close()
}

// Wait closes the parent's write end and blocks until the output is
// collected
func (b *Buffer) Wait() {
	b.W.Close()
	<-b.done
}

// Truncated reports whether more than Max bytes were written
func (b *Buffer) Truncated() bool {
	return int64(b.buf.Len()) > b.Max
}

// Bytes returns at most Max captured bytes
func (b *Buffer) Bytes() []byte {
	p := b.buf.Bytes()
	if int64(len(p)) > b.Max {
		p = p[:b.Max]
	}
	return p
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer[%d/%d]", b.buf.Len(), b.Max)
}

// Output runs cmd with its standard output captured into a Buffer of max
// bytes. The buffer is returned together with the error of cmd, so the
// output of a failed run can still be inspected.
func Output(cmd *exec.Cmd, max int64) (*Buffer, error) {
	b, err := NewBuffer(max)
	if err != nil {
		return nil, err
	}
	cmd.Stdout = b.W
	if err := cmd.Start(); err != nil {
		b.Wait()
		return b, err
	}
	err = cmd.Wait()
	b.Wait()
	return b, err
}
