package ldd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLdd writes a shell script standing in for ldd(1)
func fakeLdd(t *testing.T, body string) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	p := filepath.Join(t.TempDir(), "ldd")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return p
}

func TestExecQuery(t *testing.T) {
	tool := fakeLdd(t, `printf '\tlinux-vdso.so.1 (0x00007ffd8a9e1000)\n\tlibc.so.6 => /usr/lib64/libc.so.6 (0x00007f5c7b400000)\n'`)
	q := &Exec{Tool: tool}
	deps, err := q.Query(context.Background(), "/usr/bin/true")
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/lib/libc.so.6"}, deps)
}

func TestExecQuerySkipsMalformedLine(t *testing.T) {
	tool := fakeLdd(t, `printf '\tlibweird.so => /opt/my app/libweird.so (0x10)\n\tlibz.so.1 => /lib64/libz.so.1 (0x20)\n'`)
	q := &Exec{Tool: tool}
	deps, err := q.Query(context.Background(), "/usr/bin/app")
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/lib/libz.so.1"}, deps)
}

func TestExecStatic(t *testing.T) {
	tool := fakeLdd(t, `echo '	not a dynamic executable' >&2; exit 1`)
	q := &Exec{Tool: tool}
	deps, err := q.Query(context.Background(), "/usr/bin/busybox")
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestExecFailure(t *testing.T) {
	tool := fakeLdd(t, `echo 'ldd: ./x: No such file or directory' >&2; exit 1`)
	q := &Exec{Tool: tool}
	_, err := q.Query(context.Background(), "./x")
	assert.Error(t, err)
}
