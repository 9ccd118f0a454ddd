package binary

import (
	"context"
	"os/exec"
	"strings"

	"github.com/kkernick/sb/pkg/library"
	"github.com/kkernick/sb/pkg/pipe"
)

// defaultBuiltins is used when bash is unavailable
var defaultBuiltins = []string{
	// reserved words
	"!", "[[", "]]", "case", "coproc", "do", "done", "elif", "else", "esac",
	"fi", "for", "function", "if", "in", "select", "then", "time", "until",
	"while", "{", "}",
	// builtins
	".", ":", "[", "alias", "bg", "bind", "break", "builtin", "caller", "cd",
	"command", "compgen", "complete", "compopt", "continue", "declare",
	"dirs", "disown", "echo", "enable", "eval", "exec", "exit", "export",
	"false", "fc", "fg", "getopts", "hash", "help", "history", "jobs",
	"kill", "let", "local", "logout", "mapfile", "popd", "printf", "pushd",
	"pwd", "read", "readarray", "readonly", "return", "set", "shift",
	"shopt", "source", "suspend", "test", "times", "trap", "true", "type",
	"typeset", "ulimit", "umask", "unalias", "unset", "wait",
}

// DefaultBuiltins returns the static builtin and reserved word list
func DefaultBuiltins() library.Set {
	return library.NewSet(defaultBuiltins...)
}

// ShellBuiltins asks bash for its builtins and reserved words, falling back
// to DefaultBuiltins when bash cannot be run.
func ShellBuiltins(ctx context.Context) library.Set {
	buf, err := pipe.Output(exec.CommandContext(ctx, "bash", "-c", "compgen -bk"), 64<<10)
	if buf == nil {
		return DefaultBuiltins()
	}
	fields := strings.Fields(string(buf.Bytes()))
	if err != nil || len(fields) == 0 {
		return DefaultBuiltins()
	}
	return library.NewSet(fields...)
}
