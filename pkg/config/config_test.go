package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadYAML(t *testing.T) {
	p := write(t, "app.yaml", `
program: /usr/bin/chromium
binaries: [xdg-open]
libraries: [/usr/lib/chromium, "libnss*"]
syscalls: [files_r, ioctl]
seccomp: enforcing
setenv:
  LANG: C.UTF-8
verbose: 2
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/chromium", c.Program)
	assert.Equal(t, []string{"/usr/lib/chromium", "libnss*"}, c.Libraries)
	assert.Equal(t, SeccompEnforcing, c.Seccomp)
	assert.Equal(t, StoreEphemeral, c.Store)
	assert.Equal(t, "C.UTF-8", c.Setenv["LANG"])
	assert.Equal(t, 2, c.Verbose)
	assert.Equal(t, "chromium", c.AppName())
	require.NoError(t, c.Validate())
}

func TestLoadTOML(t *testing.T) {
	p := write(t, "app.toml", `
program = "okular"
name = "reader"
ro = ["/usr/share/fonts"]
store = "persistent"
dry_run = true
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "okular", c.Program)
	assert.Equal(t, "reader", c.AppName())
	assert.Equal(t, StorePersistent, c.Store)
	assert.Equal(t, SeccompDisabled, c.Seccomp)
	assert.True(t, c.DryRun)
	require.NoError(t, c.Validate())
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(write(t, "app.yaml", "program: x\nprogramm: y\n"))
	assert.Error(t, err)
	_, err = Load(write(t, "app.toml", "program = \"x\"\nprogramm = \"y\"\n"))
	assert.Error(t, err)
}

func TestLoadEmpty(t *testing.T) {
	c, err := Load(write(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), c)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"no program", func(c *Config) { c.Program = "" }},
		{"store", func(c *Config) { c.Store = "disk" }},
		{"seccomp", func(c *Config) { c.Seccomp = "strict" }},
		{"workers", func(c *Config) { c.Workers = -1 }},
		{"relative bind", func(c *Config) { c.Ro = []string{"home"} }},
		{"reserved name", func(c *Config) { c.Name = "shared" }},
		{"name with slash", func(c *Config) { c.Name = "a/b" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Defaults()
			c.Program = "/usr/bin/app"
			tc.mod(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLayout(t *testing.T) {
	env := map[string]string{
		"HOME":            "/home/u",
		"XDG_RUNTIME_DIR": "/run/user/1000",
	}
	c := Defaults()
	c.Program = "/usr/bin/app"

	l, err := NewLayout(c, func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, "/home/u/.local/share/sb/app", l.AppData)
	assert.Equal(t, "/home/u/.local/share/sb/cache", l.CacheRoot)
	assert.Equal(t, "/tmp/sb/app", l.SOF)
	assert.Equal(t, "/tmp/sb/shared", l.Store)
	assert.Equal(t, "/home/u/.local/share/sb/app/cmd.cache", l.CmdCache)

	c.Store = StoreRAM
	l, err = NewLayout(c, func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/sb/app", l.SOF)

	env["XDG_DATA_HOME"] = "/data"
	c.Store = StorePersistent
	l, err = NewLayout(c, func(k string) string { return env[k] })
	require.NoError(t, err)
	assert.Equal(t, "/data/sb/sof/shared", l.Store)
	assert.Equal(t, "/data/sb/app/syscalls.txt", l.Syscalls)

	_, err = NewLayout(c, func(string) string { return "" })
	assert.Error(t, err)
}
