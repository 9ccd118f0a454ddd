package libseccomp

import (
	"fmt"

	libseccomp "github.com/elastic/go-seccomp-bpf"
	"github.com/kkernick/sb/pkg/seccomp"
	"golang.org/x/net/bpf"
)

// Builder is used to build the filter
type Builder struct {
	Allow   []string
	Default seccomp.Action

	// NoNewPrivs and TSync are applied when the filter is loaded into
	// the current process, bwrap applies its own equivalents
	NoNewPrivs bool
	TSync      bool
}

// anchorSyscall takes the default action when the allow list is empty.
// A policy needs at least one group.
const anchorSyscall = "exit_group"

func (b *Builder) policy() libseccomp.Policy {
	def := ToSeccompAction(b.Default)
	p := libseccomp.Policy{DefaultAction: def}
	if len(b.Allow) == 0 {
		p.Syscalls = []libseccomp.SyscallGroup{{Action: def, Names: []string{anchorSyscall}}}
		return p
	}
	p.Syscalls = []libseccomp.SyscallGroup{
		{
			Action: libseccomp.ActionAllow,
			Names:  b.Allow,
		},
	}
	return p
}

// Build builds the filter
func (b *Builder) Build() (seccomp.Filter, error) {
	if b.Default.Action() == 0 {
		return nil, fmt.Errorf("libseccomp: invalid default action")
	}
	if err := Validate(b.Allow); err != nil {
		return nil, err
	}
	policy := b.policy()
	program, err := policy.Assemble()
	if err != nil {
		return nil, fmt.Errorf("libseccomp: assemble policy: %w", err)
	}
	return ExportBPF(program)
}

// Load installs the filter into the calling process
func (b *Builder) Load() error {
	if err := Validate(b.Allow); err != nil {
		return err
	}
	f := libseccomp.Filter{
		NoNewPrivs: b.NoNewPrivs,
		Policy:     b.policy(),
	}
	if b.TSync {
		f.Flag = libseccomp.FilterFlagTSync
	}
	return libseccomp.LoadFilter(f)
}

// ExportBPF convert the assembled program to kernel readable BPF content
func ExportBPF(program []bpf.Instruction) (seccomp.Filter, error) {
	raw, err := bpf.Assemble(program)
	if err != nil {
		return nil, fmt.Errorf("libseccomp: export bpf: %w", err)
	}
	f := seccomp.NewFilter(raw)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
