package main

import (
	"fmt"
	"io"

	"github.com/kkernick/sb/pkg/config"
	"github.com/spf13/pflag"
)

// options holds the command line. Configuration fields are copied over
// the loaded file only for flags set explicitly.
type options struct {
	fs *pflag.FlagSet

	configPath string
	bwrap      string

	name                string
	binaries, libraries []string
	ro, rw              []string
	setenv              map[string]string
	proc, dev           bool
	store, seccomp      string
	syscalls            []string
	learn               string
	compact             bool
	verbose             int
	dryRun, startup     bool
	workers             int

	updateLibraries, updateCache, updateSyscalls bool
}

func newOptions(out io.Writer) *options {
	o := &options{fs: pflag.NewFlagSet("sb", pflag.ContinueOnError)}
	fs := o.fs
	fs.SetOutput(out)
	fs.SetInterspersed(false)
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: sb [options] [--] [program [args...]]\n")
		fs.PrintDefaults()
	}

	fs.StringVarP(&o.configPath, "config", "c", "", "Load configuration from file (.yaml or .toml)")
	fs.StringVar(&o.bwrap, "bwrap", "bwrap", "Launcher executable")
	fs.StringVar(&o.name, "name", "", "Application name (default base name of program)")
	fs.StringSliceVarP(&o.binaries, "binaries", "b", nil, "Additional binaries to provide")
	fs.StringSliceVarP(&o.libraries, "libraries", "l", nil, "Additional libraries, directories or wildcards to provide")
	fs.StringSliceVar(&o.ro, "ro", nil, "Host paths to bind read-only")
	fs.StringSliceVar(&o.rw, "rw", nil, "Host paths to bind read-write")
	fs.StringToStringVar(&o.setenv, "setenv", nil, "Environment variables to set (KEY=VALUE)")
	fs.BoolVar(&o.proc, "proc", false, "Mount /proc")
	fs.BoolVar(&o.dev, "dev", false, "Mount a minimal /dev")
	fs.StringVar(&o.store, "store", string(config.StoreEphemeral), "Shared object folder location (ephemeral, persistent, ram)")
	fs.StringVar(&o.seccomp, "seccomp", string(config.SeccompDisabled), "Syscall filter mode (disabled, permissive, enforcing)")
	fs.StringSliceVar(&o.syscalls, "syscalls", nil, "Allowed syscalls, groups or numbers")
	fs.StringVar(&o.learn, "learn", "", "Merge the syscalls of a strace log (- for stdin) into the persisted syscall list")
	fs.BoolVar(&o.compact, "compact", false, "Rewrite the persisted syscall list in group form")
	fs.CountVarP(&o.verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Print the launcher command instead of running it")
	fs.BoolVar(&o.startup, "startup", false, "Synthesize the environment without launching")
	fs.IntVarP(&o.workers, "workers", "j", 0, "Concurrent workers (default number of CPUs)")
	fs.BoolVar(&o.updateLibraries, "update-libraries", false, "Rebuild the shared object folder")
	fs.BoolVar(&o.updateCache, "update-cache", false, "Ignore directory and script caches")
	fs.BoolVar(&o.updateSyscalls, "update-syscalls", false, "Recompile the syscall filter")
	return o
}

// config loads the configuration file, when given, and applies the
// changed flags and positional arguments over it
func (o *options) config() (*config.Config, error) {
	c := config.Defaults()
	if o.configPath != "" {
		var err error
		if c, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	if args := o.fs.Args(); len(args) > 0 {
		c.Program, c.Args = args[0], args[1:]
	}

	set := func(name string, f func()) {
		if o.fs.Changed(name) {
			f()
		}
	}
	set("name", func() { c.Name = o.name })
	set("binaries", func() { c.Binaries = append(c.Binaries, o.binaries...) })
	set("libraries", func() { c.Libraries = append(c.Libraries, o.libraries...) })
	set("ro", func() { c.Ro = append(c.Ro, o.ro...) })
	set("rw", func() { c.Rw = append(c.Rw, o.rw...) })
	set("setenv", func() {
		if c.Setenv == nil {
			c.Setenv = make(map[string]string, len(o.setenv))
		}
		for k, v := range o.setenv {
			c.Setenv[k] = v
		}
	})
	set("proc", func() { c.Proc = o.proc })
	set("dev", func() { c.Dev = o.dev })
	set("store", func() { c.Store = config.StorePolicy(o.store) })
	set("seccomp", func() { c.Seccomp = config.SeccompMode(o.seccomp) })
	set("syscalls", func() { c.Syscalls = append(c.Syscalls, o.syscalls...) })
	set("compact", func() { c.Compact = o.compact })
	set("verbose", func() { c.Verbose = o.verbose })
	set("dry-run", func() { c.DryRun = o.dryRun })
	set("startup", func() { c.Startup = o.startup })
	set("workers", func() { c.Workers = o.workers })
	set("update-libraries", func() { c.UpdateLibraries = o.updateLibraries })
	set("update-cache", func() { c.UpdateCache = o.updateCache })
	set("update-syscalls", func() { c.UpdateSyscalls = o.updateSyscalls })

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
