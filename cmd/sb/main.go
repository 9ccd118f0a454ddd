// Command sb synthesizes the sandbox environment of an application and
// launches it under bubblewrap.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kkernick/sb/pkg/config"
	"github.com/kkernick/sb/pkg/seccomp/policy"
	"github.com/kkernick/sb/pkg/synth"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	o := newOptions(os.Stderr)
	if err := o.fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	cfg, err := o.config()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		o.fs.Usage()
		return 2
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logLevel(cfg.Verbose))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := config.NewLayout(cfg, os.Getenv)
	if err != nil {
		log.Error(err)
		return 1
	}
	if o.learn != "" {
		added, err := learn(o.learn, l.Syscalls, os.Stdin)
		if err != nil {
			return report(os.Stderr, log, err)
		}
		log.WithField("source", l.Syscalls).WithField("added", len(added)).Info("syscalls learned from trace")
	}
	s := &synth.Synthesizer{Config: cfg, Layout: l, Log: log}
	ret, err := s.Run(ctx)
	if err != nil {
		return report(os.Stderr, log, err)
	}
	log.WithField("status", ret.Status).WithField("binds", len(ret.Plan.Binds())).Info("environment ready")
	if cfg.Startup {
		return 0
	}

	argv := command(o.bwrap, ret.Plan, ret.Filter != nil, ret.Program, cfg.Args)
	if cfg.DryRun {
		fmt.Println(quote(argv))
		return 0
	}

	var filter *os.File
	if ret.Filter != nil {
		if filter, err = ret.Filter.File(); err != nil {
			log.Error(err)
			return 1
		}
		defer filter.Close()
	}
	code, err := launch(ctx, argv, filter)
	if err != nil {
		log.Error(err)
		return 1
	}
	return code
}

// report prints a rejected syscall entry as a plain diagnostic and logs
// any other error
func report(w io.Writer, log logrus.FieldLogger, err error) int {
	var unknown *policy.UnknownSyscallError
	if errors.As(err, &unknown) {
		fmt.Fprintln(w, unknown.Error())
	} else {
		log.Error(err)
	}
	return 1
}

// learn merges the syscalls of the strace log at trace, or stdin for
// "-", into source
func learn(trace, source string, stdin io.Reader) ([]string, error) {
	r := stdin
	if trace != "-" {
		f, err := os.Open(trace)
		if err != nil {
			return nil, errors.Wrap(err, "open trace")
		}
		defer f.Close()
		r = f
	}
	return policy.Learn(source, r)
}

func logLevel(verbose int) logrus.Level {
	switch {
	case verbose <= 0:
		return logrus.WarnLevel
	case verbose == 1:
		return logrus.InfoLevel
	case verbose == 2:
		return logrus.DebugLevel
	default:
		return logrus.TraceLevel
	}
}

// quote renders argv for a POSIX shell
func quote(argv []string) string {
	q := make([]string, len(argv))
	for i, a := range argv {
		if a != "" && strings.Trim(a, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_./=:,+@%") == "" {
			q[i] = a
			continue
		}
		q[i] = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
	}
	return strings.Join(q, " ")
}
