// Package synth runs one synthesis pass for an application: it serves the
// mount plan from the command cache when possible, otherwise resolves the
// binary and library closure, materializes the shared object folder and
// assembles a new plan. The syscall filter is compiled on every pass.
package synth

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/kkernick/sb/pkg/binary"
	"github.com/kkernick/sb/pkg/cmdcache"
	"github.com/kkernick/sb/pkg/config"
	"github.com/kkernick/sb/pkg/ldd"
	"github.com/kkernick/sb/pkg/library"
	"github.com/kkernick/sb/pkg/mount"
	"github.com/kkernick/sb/pkg/seccomp/policy"
	"github.com/kkernick/sb/pkg/sof"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Synthesizer holds the collaborators of a pass
type Synthesizer struct {
	Config *config.Config
	Layout *config.Layout
	// Querier reports shared object dependencies, ldd(1) when nil
	Querier ldd.Querier
	// Path is searched for binaries, $PATH when empty
	Path string
	// LibRoot is the system library root, library.DefaultRoot when empty
	LibRoot string
	// Roots limits what the shared object folder may contain, sof.DefaultRoots when empty
	Roots []string
	// Builtins are skipped when scanning scripts, asked from bash when nil
	Builtins library.Set
	Log      logrus.FieldLogger
}

// Result is the outcome of a pass
type Result struct {
	// Program is the resolved path of the program
	Program string
	Plan    *mount.Plan
	// Status is the command cache status found before the pass
	Status cmdcache.Status
	// Filter is nil when seccomp is disabled
	Filter *policy.Compiled
}

func (s *Synthesizer) log() logrus.FieldLogger {
	l := s.Log
	if l == nil {
		l = logrus.StandardLogger()
	}
	return l.WithField("app", s.Config.AppName())
}

func (s *Synthesizer) libRoot() string {
	if s.LibRoot == "" {
		return library.DefaultRoot
	}
	return s.LibRoot
}

func (s *Synthesizer) roots() []string {
	if len(s.Roots) == 0 {
		return sof.DefaultRoots
	}
	return s.Roots
}

// Run executes the pass. Only configuration and syscall policy errors are
// returned; resolution problems are logged and skipped.
func (s *Synthesizer) Run(ctx context.Context) (*Result, error) {
	cfg, l := s.Config, s.Layout
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(l.AppData, 0o755); err != nil {
		return nil, errors.Wrap(err, "synth: create application data")
	}
	lock := flock.New(l.Lock)
	if err := lock.Lock(); err != nil {
		return nil, errors.Wrap(err, "synth: lock application data")
	}
	defer lock.Unlock()

	bins := &binary.Resolver{
		Path:     s.Path,
		CacheDir: l.CacheRoot,
		Refresh:  cfg.UpdateCache,
		Builtins: s.Builtins,
		Log:      s.Log,
	}
	program, ok := bins.Lookup(cfg.Program)
	if !ok {
		return nil, errors.Errorf("synth: program %q not found", cfg.Program)
	}

	digest, err := cfg.Digest()
	if err != nil {
		return nil, errors.Wrap(err, "synth: digest")
	}
	cache := &cmdcache.Cache{Path: l.CmdCache, SOF: l.SOF}
	ret := &Result{Program: program}
	if !cfg.UpdateLibraries {
		ret.Plan, ret.Status = cache.Lookup(digest)
	}
	log := s.log().WithField("cache", ret.Status)

	switch {
	case ret.Status == cmdcache.Hit:
		log.Debug("using cached command")

	case ret.Status == cmdcache.Stale && s.reseed(ctx):
		log.Info("shared object folder rebuilt from library cache")

	default:
		if ret.Plan, err = s.synthesize(ctx, bins, program); err != nil {
			return nil, err
		}
		if err := cache.Store(digest, ret.Plan); err != nil {
			log.WithError(err).Warn("command cache")
		}
	}

	if ret.Filter, err = (&policy.Compiler{Log: s.Log}).CompileConfig(cfg, l); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Synthesizer) libraries() *library.Resolver {
	q := s.Querier
	if q == nil {
		q = &ldd.Exec{Log: s.Log}
	}
	return &library.Resolver{
		Querier:  q,
		Root:     s.libRoot(),
		CacheDir: s.Layout.CacheRoot,
		Refresh:  s.Config.UpdateCache,
		Workers:  s.Config.Workers,
		Log:      s.Log,
	}
}

func (s *Synthesizer) store(libs *library.Resolver) *sof.Builder {
	return &sof.Builder{
		Resolver:     libs,
		Store:        s.Layout.Store,
		Roots:        s.roots(),
		LibraryCache: s.Layout.LibCache,
		Workers:      s.Config.Workers,
		Log:          s.Log,
	}
}

// reseed materializes the closure persisted by an earlier pass. It
// reports false when there is none.
func (s *Synthesizer) reseed(ctx context.Context) bool {
	closure, ok := library.ReadCache(s.Layout.LibCache)
	if !ok || len(closure) == 0 {
		return false
	}
	libs := s.libraries()
	libs.Seed(closure.Sorted()...)
	if _, err := s.store(libs).Materialize(ctx, s.Layout.SOF, false); err != nil {
		s.log().WithError(err).Warn("rebuild from library cache")
		return false
	}
	return true
}

// synthesize resolves the closure from scratch and assembles the plan
func (s *Synthesizer) synthesize(ctx context.Context, bins *binary.Resolver, program string) (*mount.Plan, error) {
	cfg := s.Config
	if bins.Builtins == nil {
		bins.Builtins = binary.ShellBuiltins(ctx)
	}
	for _, name := range append([]string{program}, cfg.Binaries...) {
		if _, err := bins.Add(ctx, name); err != nil {
			return nil, err
		}
	}

	libs := s.libraries()
	binaries := bins.Visited().Sorted()
	for _, p := range binaries {
		if _, err := libs.Resolve(ctx, p); err != nil {
			return nil, err
		}
	}
	for _, p := range cfg.Libraries {
		if _, err := libs.Resolve(ctx, p); err != nil {
			return nil, err
		}
	}

	dirs, err := s.store(libs).Materialize(ctx, s.Layout.SOF, cfg.UpdateLibraries)
	if err != nil {
		return nil, err
	}
	return s.plan(binaries, dirs), nil
}

// plan assembles the mount plan: the shared object folder replaces
// /usr/lib and /usr/bin, closure directories are overlaid on top of it
// and binaries outside the recognized roots are bound in place.
func (s *Synthesizer) plan(binaries []string, dirs []sof.DirectoryBind) *mount.Plan {
	cfg := s.Config
	b := mount.NewDefaultBuilder().WithTmpfs("/tmp")
	for _, r := range s.roots() {
		b.WithBindTry(filepath.Join(s.Layout.SOF, r), r, true)
	}
	for _, d := range dirs {
		b.WithOverlay(d.Source, d.Target)
	}
	for _, p := range binaries {
		if !under(p, s.roots()) {
			b.WithBind(p, p, true)
		}
	}
	for _, p := range cfg.Ro {
		b.WithBindTry(p, p, true)
	}
	for _, p := range cfg.Rw {
		b.WithBindTry(p, p, false)
	}
	if cfg.Proc {
		b.WithProc()
	}
	if cfg.Dev {
		b.WithDev()
	}
	keys := make([]string, 0, len(cfg.Setenv))
	for k := range cfg.Setenv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WithSetenv(k, cfg.Setenv[k])
	}
	return b.FilterNotExist().Build()
}

func under(p string, roots []string) bool {
	for _, r := range roots {
		if p == r || strings.HasPrefix(p, r+"/") {
			return true
		}
	}
	return false
}
