package binary

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kkernick/sb/pkg/library"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	bin   string
	cache string
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	f := &fixture{bin: t.TempDir(), cache: t.TempDir()}
	for _, n := range names {
		f.write(t, n, "\x7fELF\x02\x01\x01")
	}
	return f
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(f.bin, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o755))
	return p
}

func (f *fixture) resolver() *Resolver {
	return &Resolver{Path: f.bin, CacheDir: f.cache}
}

func (f *fixture) paths(names ...string) library.Set {
	s := make(library.Set)
	for _, n := range names {
		s.Add(filepath.Join(f.bin, n))
	}
	return s
}

func TestAddCompiled(t *testing.T) {
	f := newFixture(t, "app")
	r := f.resolver()

	got, err := r.Add(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, f.paths("app"), got)

	again, err := r.Add(context.Background(), filepath.Join(f.bin, "app"))
	require.NoError(t, err)
	assert.Empty(t, again)

	missing, err := r.Add(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestAddScriptHereDoc(t *testing.T) {
	f := newFixture(t, "sh", "cat", "grep", "inner", "sed")
	f.write(t, "launch", "#!"+filepath.Join(f.bin, "sh")+`
# sed is only mentioned in a comment
cat <<EOF
inner --flag
EOF
grep -q x /etc/os-release && launch
`)
	r := f.resolver()

	got, err := r.Add(context.Background(), "launch")
	require.NoError(t, err)
	assert.Equal(t, f.paths("launch", "sh", "cat", "grep"), got)
}

func TestAddNestedScripts(t *testing.T) {
	f := newFixture(t, "bash", "env", "curl", "python3", "pip")
	f.write(t, "outer", "#!"+filepath.Join(f.bin, "env")+" bash\nhelper\n")
	f.write(t, "helper", "#!"+filepath.Join(f.bin, "bash")+"\ncurl -s url\n")
	f.write(t, "tool", "#!"+filepath.Join(f.bin, "env")+" python3\npip install curl\n")
	r := f.resolver()

	got, err := r.Add(context.Background(), "outer")
	require.NoError(t, err)
	assert.Equal(t, f.paths("outer", "env", "bash", "helper", "curl"), got)

	// python bodies are not scanned
	got, err = r.Add(context.Background(), "tool")
	require.NoError(t, err)
	assert.Equal(t, f.paths("tool", "python3"), got)
}

func TestAddNotUTF8(t *testing.T) {
	f := newFixture(t, "sh", "grep")
	f.write(t, "blob", "#!"+filepath.Join(f.bin, "sh")+"\ngrep \xff\xfe\x00\n")
	r := f.resolver()

	got, err := r.Add(context.Background(), "blob")
	require.NoError(t, err)
	assert.Equal(t, f.paths("blob"), got)
}

func TestScriptCache(t *testing.T) {
	f := newFixture(t, "sh", "grep", "sed")
	script := f.write(t, "run", "#!"+filepath.Join(f.bin, "sh")+"\ngrep x\n")

	got, err := f.resolver().Add(context.Background(), "run")
	require.NoError(t, err)
	assert.Equal(t, f.paths("run", "sh", "grep"), got)

	cached, ok := library.ReadCache(filepath.Join(f.cache, library.CacheName(script, library.BinaryCacheSuffix)))
	require.True(t, ok)
	assert.Equal(t, f.paths("sh", "grep"), cached)

	// edits are invisible until the cache is refreshed
	f.write(t, "run", "#!"+filepath.Join(f.bin, "sh")+"\ngrep x\nsed y\n")
	got, err = f.resolver().Add(context.Background(), "run")
	require.NoError(t, err)
	assert.Equal(t, f.paths("run", "sh", "grep"), got)

	r := f.resolver()
	r.Refresh = true
	got, err = r.Add(context.Background(), "run")
	require.NoError(t, err)
	assert.Equal(t, f.paths("run", "sh", "grep", "sed"), got)
}

func TestCanonical(t *testing.T) {
	for _, tc := range [][2]string{
		{"/bin/sh", "/usr/bin/sh"},
		{"/sbin/ip", "/usr/bin/ip"},
		{"/usr/sbin/iw", "/usr/bin/iw"},
		{"/usr/bin/ls", "/usr/bin/ls"},
		{"/usr/local/bin/x", "/usr/local/bin/x"},
		{"/binary/x", "/binary/x"},
	} {
		assert.Equal(t, tc[1], Canonical(tc[0]), tc[0])
	}
}

func TestShellBuiltins(t *testing.T) {
	b := ShellBuiltins(context.Background())
	assert.True(t, b.Has("cd"))
	assert.True(t, b.Has("while"))
}
