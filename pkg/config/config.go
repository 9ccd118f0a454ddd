// Package config defines the effective configuration of one sandboxed
// application, how it is loaded, and the digest keying its command cache.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// StorePolicy selects where the shared object folders live
type StorePolicy string

// Store policies
const (
	StoreEphemeral  StorePolicy = "ephemeral"
	StorePersistent StorePolicy = "persistent"
	StoreRAM        StorePolicy = "ram"
)

// SeccompMode selects how the syscall filter is applied
type SeccompMode string

// Seccomp modes
const (
	SeccompDisabled   SeccompMode = "disabled"
	SeccompPermissive SeccompMode = "permissive"
	SeccompEnforcing  SeccompMode = "enforcing"
)

// reserved names collide with shared directories of the layout
var reserved = map[string]bool{sharedDir: true, "cache": true, "sof": true}

// Config is the flattened configuration of an application. Fields tagged
// cache:"-" do not change the synthesized plan and are left out of the
// digest.
type Config struct {
	// Program is the binary to launch, a name or an absolute path
	Program string `yaml:"program" toml:"program"`
	// Name identifies the application, the base name of Program when empty
	Name string `yaml:"name,omitempty" toml:"name"`
	// Args are passed to Program
	Args []string `yaml:"args,omitempty" toml:"args" cache:"-"`

	Binaries  []string `yaml:"binaries,omitempty" toml:"binaries"`
	Libraries []string `yaml:"libraries,omitempty" toml:"libraries"`

	// Ro and Rw are host paths exposed at the same location
	Ro     []string          `yaml:"ro,omitempty" toml:"ro"`
	Rw     []string          `yaml:"rw,omitempty" toml:"rw"`
	Setenv map[string]string `yaml:"setenv,omitempty" toml:"setenv"`
	Proc   bool              `yaml:"proc,omitempty" toml:"proc"`
	Dev    bool              `yaml:"dev,omitempty" toml:"dev"`

	Store StorePolicy `yaml:"store" toml:"store"`

	Seccomp  SeccompMode `yaml:"seccomp" toml:"seccomp"`
	Syscalls []string    `yaml:"syscalls,omitempty" toml:"syscalls"`
	// Compact rewrites the persisted syscall list in group form
	Compact bool `yaml:"compact,omitempty" toml:"compact" cache:"-"`

	Verbose int  `yaml:"verbose,omitempty" toml:"verbose" cache:"-"`
	DryRun  bool `yaml:"dry_run,omitempty" toml:"dry_run" cache:"-"`
	Startup bool `yaml:"startup,omitempty" toml:"startup" cache:"-"`
	Workers int  `yaml:"workers,omitempty" toml:"workers" cache:"-"`

	// UpdateLibraries rebuilds the shared object folder
	UpdateLibraries bool `yaml:"update_libraries,omitempty" toml:"update_libraries" cache:"-"`
	// UpdateCache ignores directory and script caches
	UpdateCache bool `yaml:"update_cache,omitempty" toml:"update_cache" cache:"-"`
	// UpdateSyscalls recompiles the syscall filter
	UpdateSyscalls bool `yaml:"update_syscalls,omitempty" toml:"update_syscalls" cache:"-"`
}

// Defaults returns the configuration used when a field is not set
func Defaults() *Config {
	return &Config{
		Store:   StoreEphemeral,
		Seccomp: SeccompDisabled,
	}
}

// Load reads a configuration file over Defaults. The format is chosen by
// extension: .toml for TOML, anything else is YAML. Unknown keys are
// rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	c := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), c)
		if err != nil {
			return nil, errors.Wrapf(err, "config: %s", path)
		}
		if u := md.Undecoded(); len(u) > 0 {
			return nil, errors.Errorf("config: %s: unknown key %q", path, u[0].String())
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "config: %s", path)
		}
	}
	return c, nil
}

// AppName returns the application identity
func (c *Config) AppName() string {
	if c.Name != "" {
		return c.Name
	}
	return filepath.Base(c.Program)
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	if c.Program == "" {
		return errors.New("config: program is required")
	}
	switch n := c.AppName(); {
	case n == "." || n == "/" || strings.ContainsRune(n, '/'):
		return errors.Errorf("config: invalid application name %q", n)
	case reserved[n]:
		return errors.Errorf("config: application name %q is reserved", n)
	}
	switch c.Store {
	case StoreEphemeral, StorePersistent, StoreRAM:
	default:
		return errors.Errorf("config: unknown store policy %q", c.Store)
	}
	switch c.Seccomp {
	case SeccompDisabled, SeccompPermissive, SeccompEnforcing:
	default:
		return errors.Errorf("config: unknown seccomp mode %q", c.Seccomp)
	}
	if c.Workers < 0 {
		return errors.Errorf("config: negative workers %d", c.Workers)
	}
	for _, p := range append(append([]string{}, c.Ro...), c.Rw...) {
		if !filepath.IsAbs(p) {
			return errors.Errorf("config: bind path %q is not absolute", p)
		}
	}
	return nil
}
