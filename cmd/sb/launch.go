package main

import (
	"context"
	"os"
	"os/exec"

	"github.com/kkernick/sb/pkg/mount"
	"github.com/pkg/errors"
)

// filterFd is the descriptor of the first inherited extra file
const filterFd = "3"

// command builds the launcher argument vector
func command(bwrap string, plan *mount.Plan, seccomp bool, program string, args []string) []string {
	argv := []string{bwrap, "--new-session", "--die-with-parent", "--unshare-all", "--share-net"}
	argv = append(argv, plan.Args()...)
	if seccomp {
		argv = append(argv, "--seccomp", filterFd)
	}
	argv = append(argv, "--", program)
	return append(argv, args...)
}

// launch runs argv with the standard streams and filter inherited, and
// returns the exit code of the launcher
func launch(ctx context.Context, argv []string, filter *os.File) (int, error) {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return 0, errors.Wrap(err, "launcher")
	}
	cmd := exec.CommandContext(ctx, path, argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if filter != nil {
		cmd.ExtraFiles = []*os.File{filter}
	}
	err = cmd.Run()
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return exit.ExitCode(), nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "launcher")
	}
	return 0, nil
}
