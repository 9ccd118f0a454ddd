package mount

import (
	"strings"
)

// Builder builds a plan operation by operation
type Builder struct {
	Ops []Op
}

// NewBuilder creates new mount builder instance
func NewBuilder() *Builder {
	return &Builder{}
}

// NewDefaultBuilder creates a builder with the merged-usr layout: the
// legacy library and binary directories are symlinks into /usr, and the
// dynamic linker configuration is exposed when present.
func NewDefaultBuilder() *Builder {
	return NewBuilder().
		WithSymlink("/usr/lib", "/lib").
		WithSymlink("/usr/lib", "/lib64").
		WithSymlink("/usr/lib", "/usr/lib64").
		WithSymlink("/usr/bin", "/bin").
		WithSymlink("/usr/bin", "/sbin").
		WithSymlink("/usr/bin", "/usr/sbin").
		WithBindTry("/etc/ld.so.cache", "/etc/ld.so.cache", true).
		WithBindTry("/etc/ld.so.preload", "/etc/ld.so.preload", true)
}

// Build returns the plan
func (b *Builder) Build() *Plan {
	ops := make([]Op, len(b.Ops))
	copy(ops, b.Ops)
	return &Plan{Ops: ops}
}

// FilterNotExist removes operations whose source does not exist, except try
// binds which the launcher already tolerates
func (b *Builder) FilterNotExist() *Builder {
	ops := b.Ops[:0]
	for _, m := range b.Ops {
		if (!m.Try || m.Kind == KindOverlay) && m.sourceMissing() {
			continue
		}
		ops = append(ops, m)
	}
	b.Ops = ops
	return b
}

// WithOp add single operation to builder
func (b *Builder) WithOp(m Op) *Builder {
	b.Ops = append(b.Ops, m)
	return b
}

// WithBind adds a bind mount to builder
func (b *Builder) WithBind(source, target string, readonly bool) *Builder {
	kind := KindBind
	if readonly {
		kind = KindRoBind
	}
	return b.WithOp(Op{Kind: kind, Source: source, Target: target})
}

// WithBindTry adds a bind mount that is skipped when source is missing
func (b *Builder) WithBindTry(source, target string, readonly bool) *Builder {
	b.WithBind(source, target, readonly)
	b.Ops[len(b.Ops)-1].Try = true
	return b
}

// WithSymlink creates a symlink at target pointing to source
func (b *Builder) WithSymlink(source, target string) *Builder {
	return b.WithOp(Op{Kind: KindSymlink, Source: source, Target: target})
}

// WithOverlay exposes source at target through a temporary overlay
func (b *Builder) WithOverlay(source, target string) *Builder {
	return b.WithOp(Op{Kind: KindOverlay, Source: source, Target: target})
}

// WithSetenv sets an environment variable
func (b *Builder) WithSetenv(key, value string) *Builder {
	return b.WithOp(Op{Kind: KindSetenv, Target: key, Value: value})
}

// WithTmpfs add a tmpfs mount to builder
func (b *Builder) WithTmpfs(target string) *Builder {
	return b.WithOp(Op{Kind: KindTmpfs, Target: target})
}

// WithProc add proc file system
func (b *Builder) WithProc() *Builder {
	return b.WithOp(Op{Kind: KindProc, Target: "/proc"})
}

// WithDev add a minimal /dev
func (b *Builder) WithDev() *Builder {
	return b.WithOp(Op{Kind: KindDev, Target: "/dev"})
}

func (b Builder) String() string {
	var sb strings.Builder
	sb.WriteString("Mounts: ")
	for i, m := range b.Ops {
		sb.WriteString(m.String())
		if i != len(b.Ops)-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}
