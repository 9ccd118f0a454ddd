package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kkernick/sb/pkg/seccomp/group"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceName(t *testing.T) {
	for _, tc := range [][2]string{
		{`execve("/usr/bin/app", ["app"], 0x7ffd /* 30 vars */) = 0`, "execve"},
		{`12345 openat(AT_FDCWD, "/etc/ld.so.cache", O_RDONLY|O_CLOEXEC) = 3`, "openat"},
		{`[pid  4242] read(3, "\177ELF", 832) = 832`, "read"},
		{`10:22:33.123456 close(3)                = 0`, "close"},
		{`<... read resumed>"", 4096) = 0`, ""},
		{`--- SIGCHLD {si_signo=SIGCHLD, si_code=CLD_EXITED} ---`, ""},
		{`+++ exited with 0 +++`, ""},
		{``, ""},
	} {
		assert.Equal(t, tc[1], traceName(tc[0]), tc[0])
	}
}

const trace = `execve("/usr/bin/app", ["app"], 0x7ffd /* 30 vars */) = 0
brk(NULL)                               = 0x55d0c0a1c000
openat(AT_FDCWD, "/etc/ld.so.cache", O_RDONLY|O_CLOEXEC) = 3
[pid  4242] read(3, "\177ELF", 832) = 832
not_a_syscall(1) = -1 ENOSYS
0(1) = -1 ENOSYS
<... read resumed>"", 4096) = 0
+++ exited with 0 +++
`

func TestTraceSyscalls(t *testing.T) {
	got, err := TraceSyscalls(strings.NewReader(trace))
	require.NoError(t, err)
	assert.Equal(t, []string{"brk", "execve", "openat", "read"}, got)
}

func TestLearnCreates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app", "syscalls.txt")

	added, err := Learn(path, strings.NewReader(trace))
	require.NoError(t, err)
	assert.Equal(t, []string{"brk", "execve", "openat", "read"}, added)
	src, err := ReadSource(path)
	require.NoError(t, err)
	assert.Equal(t, added, src)

	// the learned source compiles to the traced syscalls
	c, err := new(Compiler).Compile(Options{Source: path})
	require.NoError(t, err)
	assert.Equal(t, added, c.Allow)
}

func TestLearnMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syscalls.txt")
	require.NoError(t, os.WriteFile(path, []byte("HASH: old\nfiles_r # reading\nexecve\n"), 0o644))

	added, err := Learn(path, strings.NewReader(trace))
	require.NoError(t, err)
	// read and openat are covered by files_r
	files, _ := group.Lookup("files_r")
	require.Contains(t, files, "openat")
	require.Contains(t, files, "read")
	assert.Equal(t, []string{"brk"}, added)

	src, err := ReadSource(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"files_r", "execve", "brk"}, src)

	// nothing new leaves the file alone
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	added, err = Learn(path, strings.NewReader(trace))
	require.NoError(t, err)
	assert.Empty(t, added)
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLearnRejectsUnknownSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syscalls.txt")
	require.NoError(t, os.WriteFile(path, []byte("not_a_syscall\n"), 0o644))

	_, err := Learn(path, strings.NewReader(trace))
	var u *UnknownSyscallError
	assert.ErrorAs(t, err, &u)
}
