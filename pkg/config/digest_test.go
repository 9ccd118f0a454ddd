package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func base() *Config {
	c := Defaults()
	c.Program = "/usr/bin/app"
	c.Binaries = []string{"sh", "xdg-open"}
	c.Libraries = []string{"/usr/lib/qt6"}
	c.Syscalls = []string{"files_r", "ioctl"}
	c.Seccomp = SeccompEnforcing
	return c
}

func digest(t *testing.T, c *Config) Digest {
	t.Helper()
	d, err := c.Digest()
	require.NoError(t, err)
	return d
}

func TestDigestStable(t *testing.T) {
	assert.Equal(t, digest(t, base()), digest(t, base()))
}

func TestDigestRelevantFields(t *testing.T) {
	want := digest(t, base())
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"program", func(c *Config) { c.Program = "/usr/bin/other" }},
		{"name", func(c *Config) { c.Name = "other" }},
		{"binaries", func(c *Config) { c.Binaries = append(c.Binaries, "curl") }},
		{"libraries", func(c *Config) { c.Libraries = nil }},
		{"ro", func(c *Config) { c.Ro = []string{"/etc/fonts"} }},
		{"rw", func(c *Config) { c.Rw = []string{"/home/u/Downloads"} }},
		{"setenv", func(c *Config) { c.Setenv = map[string]string{"A": "1"} }},
		{"proc", func(c *Config) { c.Proc = true }},
		{"dev", func(c *Config) { c.Dev = true }},
		{"store", func(c *Config) { c.Store = StoreRAM }},
		{"seccomp", func(c *Config) { c.Seccomp = SeccompPermissive }},
		{"syscalls", func(c *Config) { c.Syscalls = []string{"files_r"} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mod(c)
			assert.NotEqual(t, want, digest(t, c))
		})
	}
}

func TestDigestIgnoredFields(t *testing.T) {
	want := digest(t, base())
	c := base()
	c.Args = []string{"--new-window"}
	c.Compact = true
	c.Verbose = 3
	c.DryRun = true
	c.Startup = true
	c.Workers = 7
	c.UpdateLibraries = true
	c.UpdateCache = true
	c.UpdateSyscalls = true
	assert.Equal(t, want, digest(t, c))
}

func TestDigestOrderIndependent(t *testing.T) {
	want := digest(t, base())
	c := base()
	c.Binaries = []string{"xdg-open", "sh", "sh"}
	c.Syscalls = []string{"ioctl", "files_r"}
	c.Setenv = map[string]string{}
	assert.Equal(t, want, digest(t, c))

	// the default identity is the program name
	c.Name = "app"
	assert.Equal(t, want, digest(t, c))
}

func TestParseDigest(t *testing.T) {
	d := digest(t, base())
	got, ok := ParseDigest(d.String() + "\n")
	assert.True(t, ok)
	assert.Equal(t, d, got)

	_, ok = ParseDigest("abc")
	assert.False(t, ok)
}
