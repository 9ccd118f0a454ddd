package libseccomp

import (
	libseccomp "github.com/elastic/go-seccomp-bpf"
	"github.com/kkernick/sb/pkg/seccomp"
)

// ToSeccompAction convert action to libseccomp compatible action
// errno always reports EPERM to the caller
func ToSeccompAction(a seccomp.Action) libseccomp.Action {
	switch a.Action() {
	case seccomp.ActionAllow:
		return libseccomp.ActionAllow
	case seccomp.ActionErrno:
		return libseccomp.ActionErrno
	case seccomp.ActionLog:
		return libseccomp.ActionLog
	default:
		return libseccomp.ActionKillProcess
	}
}
