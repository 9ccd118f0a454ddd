package policy

import (
	"github.com/kkernick/sb/pkg/config"
)

// CompileConfig compiles the policy of an application with the layout's
// persisted files. It returns nil when seccomp is disabled.
func (c *Compiler) CompileConfig(cfg *config.Config, l *config.Layout) (*Compiled, error) {
	if cfg.Seccomp == config.SeccompDisabled || cfg.Seccomp == "" {
		return nil, nil
	}
	return c.Compile(Options{
		Syscalls:   cfg.Syscalls,
		Source:     l.Syscalls,
		Filter:     l.Filter,
		Hash:       l.FilterHash,
		Permissive: cfg.Seccomp == config.SeccompPermissive,
		Refresh:    cfg.UpdateSyscalls,
		Compact:    cfg.Compact,
	})
}
