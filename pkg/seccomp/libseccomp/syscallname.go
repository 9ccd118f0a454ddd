package libseccomp

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/elastic/go-seccomp-bpf/arch"
)

var info, errInfo = arch.GetInfo("")

// UnknownSyscallError is returned for a syscall name or number that
// does not exist on the native architecture
type UnknownSyscallError struct {
	Name string
}

func (e *UnknownSyscallError) Error() string {
	return fmt.Sprintf("unrecognized syscall: %q", e.Name)
}

// ToSyscallName convert syscallno to syscall name
func ToSyscallName(sysno uint) (string, error) {
	if errInfo != nil {
		return "", errInfo
	}
	n, ok := info.SyscallNumbers[int(sysno)]
	if !ok {
		return "", &UnknownSyscallError{Name: strconv.FormatUint(uint64(sysno), 10)}
	}
	return n, nil
}

// Resolve returns the syscall name for a name or a decimal syscall
// number on the native architecture
func Resolve(s string) (string, error) {
	if errInfo != nil {
		return "", errInfo
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return ToSyscallName(uint(n))
	}
	if _, ok := info.SyscallNames[s]; !ok {
		return "", &UnknownSyscallError{Name: s}
	}
	return s, nil
}

// Validate checks every name exists on the native architecture
func Validate(names []string) error {
	for _, n := range names {
		if _, err := Resolve(n); err != nil {
			return err
		}
	}
	return nil
}

// Names returns every syscall name of the native architecture, sorted
func Names() ([]string, error) {
	if errInfo != nil {
		return nil, errInfo
	}
	ret := make([]string, 0, len(info.SyscallNames))
	for n := range info.SyscallNames {
		ret = append(ret, n)
	}
	sort.Strings(ret)
	return ret, nil
}
