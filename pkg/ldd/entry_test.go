package ldd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []*Entry
	}{
		{"musl", `	/lib/ld-musl-x86_64.so.1 (0x7ff71a8e8000)
	libc.musl-x86_64.so.1 => /lib/ld-musl-x86_64.so.1 (0x7ff71a8e8000)
`, []*Entry{
			{Name: "/lib/ld-musl-x86_64.so.1", Location: 0x7ff71a8e8000},
			{Name: "libc.musl-x86_64.so.1", Path: "/lib/ld-musl-x86_64.so.1", Location: 0x7ff71a8e8000},
		}},
		{"glibc", `	linux-vdso.so.1 (0x00007ffd8a9e1000)
	libc.so.6 => /usr/lib/libc.so.6 (0x00007f5c7b400000)
	/lib64/ld-linux-x86-64.so.2 => /usr/lib64/ld-linux-x86-64.so.2 (0x00007f5c7b6b8000)
`, []*Entry{
			{Name: "linux-vdso.so.1", Location: 0x00007ffd8a9e1000},
			{Name: "libc.so.6", Path: "/usr/lib/libc.so.6", Location: 0x00007f5c7b400000},
			{Name: "/lib64/ld-linux-x86-64.so.2", Path: "/usr/lib64/ld-linux-x86-64.so.2", Location: 0x00007f5c7b6b8000},
		}},
		{"not found", `	libmissing.so.3 => not found
	libm.so.6 => /usr/lib/libm.so.6 (0x00007f5c7b000000)
`, []*Entry{
			{Name: "libmissing.so.3", NotFound: true},
			{Name: "libm.so.6", Path: "/usr/lib/libm.so.6", Location: 0x00007f5c7b000000},
		}},
		{"static", "\tstatically linked\n", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse([]byte(tc.out))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
	}{
		{"separator", "libc.so.6 -> /usr/lib/libc.so.6 (0x1)", ErrUnexpectedSeparator},
		{"location", "libc.so.6 => /usr/lib/libc.so.6 0x1", ErrBadLocationFormat},
		{"relative", "libc.so.6 => lib/libc.so.6 (0x1)", ErrPathNotAbsolute},
		{"segments", "a b c d e", EntryUnexpectedSegmentsError("a b c d e")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.out))
			assert.Equal(t, tc.err, err)
		})
	}
}

func TestParsePartial(t *testing.T) {
	got, err := Parse([]byte("libc.so.6 => /usr/lib/libc.so.6 (0x10)\ngarbage here x y z\n"))
	require.Error(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/usr/lib/libc.so.6", got[0].Path)
}

func TestParseSkipsMalformed(t *testing.T) {
	got, err := Parse([]byte(`	libweird.so => /opt/my app/libweird.so (0x7f0000000000)
	libbad.so => lib/relative.so (0x10)
	libc.so.6 => /usr/lib/libc.so.6 (0x7f5c7b400000)
`))
	var segments EntryUnexpectedSegmentsError
	assert.ErrorAs(t, err, &segments)
	assert.Equal(t, []string{"/usr/lib/libc.so.6"}, Dependencies(got))
}

func TestNormalize(t *testing.T) {
	for _, tc := range [][2]string{
		{"/lib64/ld-linux-x86-64.so.2", "/usr/lib/ld-linux-x86-64.so.2"},
		{"/usr/lib64/libc.so.6", "/usr/lib/libc.so.6"},
		{"/lib/libz.so.1", "/usr/lib/libz.so.1"},
		{"/usr/lib/../lib/libm.so.6", "/usr/lib/libm.so.6"},
		{"/usr/lib/x86_64-linux-gnu/a.so", "/usr/lib/x86_64-linux-gnu/a.so"},
		{"/opt/app/lib64/libapp.so", "/opt/app/lib/libapp.so"},
		{"/library/x.so", "/library/x.so"},
	} {
		assert.Equal(t, tc[1], Normalize(tc[0]), tc[0])
	}
}

func TestDependencies(t *testing.T) {
	entries, err := Parse([]byte(`	linux-vdso.so.1 (0x00007ffd8a9e1000)
	libc.so.6 => /usr/lib/libc.so.6 (0x00007f5c7b400000)
	libmissing.so.3 => not found
	/lib64/ld-linux-x86-64.so.2 => /usr/lib64/ld-linux-x86-64.so.2 (0x00007f5c7b6b8000)
	libc.so.6 => /usr/lib64/libc.so.6 (0x00007f5c7b400000)
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/lib/libc.so.6", "/usr/lib/ld-linux-x86-64.so.2"}, Dependencies(entries))
}
