// Package seccomp provides the wire format of a compiled seccomp filter
// and the actions a filter can take.
//
// A Filter is the raw kernel representation: a sequence of 8 byte
// sock_filter instructions in native byte order, ready to be written to
// a file descriptor consumed by bwrap --seccomp or loaded with
// seccomp(2).
package seccomp

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/net/bpf"
)

const (
	// instructionSize is the size of struct sock_filter
	instructionSize = 8
	// maxInstructions is BPF_MAXINSNS
	maxInstructions = 4096
)

// Filter is the BPF seccomp filter value
type Filter []byte

// NewFilter encodes raw BPF instructions into a Filter
func NewFilter(raw []bpf.RawInstruction) Filter {
	b := make([]byte, 0, len(raw)*instructionSize)
	for _, ins := range raw {
		b = binary.NativeEndian.AppendUint16(b, ins.Op)
		b = append(b, ins.Jt, ins.Jf)
		b = binary.NativeEndian.AppendUint32(b, ins.K)
	}
	return Filter(b)
}

// Len returns the number of instructions in the filter
func (f Filter) Len() int {
	return len(f) / instructionSize
}

// Validate checks the filter is a whole number of instructions and
// within the kernel program size limit
func (f Filter) Validate() error {
	switch {
	case len(f) == 0:
		return fmt.Errorf("seccomp: empty filter")
	case len(f)%instructionSize != 0:
		return fmt.Errorf("seccomp: filter size %d is not a multiple of %d", len(f), instructionSize)
	case f.Len() > maxInstructions:
		return fmt.Errorf("seccomp: filter has %d instructions, limit is %d", f.Len(), maxInstructions)
	}
	return nil
}

