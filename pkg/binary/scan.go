package binary

import (
	"bufio"
	"path/filepath"
	"strings"

	"github.com/kkernick/sb/pkg/library"
)

// rejectChars marks tokens that cannot name a command
const rejectChars = "=&|()/\"'[]$*<>{};?~\\`:"

// shells lists interpreters whose scripts are scanned for commands
var shells = map[string]bool{
	"sh": true, "bash": true, "dash": true, "zsh": true,
	"ksh": true, "mksh": true, "ash": true, "busybox": true,
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\v', '\f', ';', '&', '|', '(', ')', '`':
		return true
	}
	return false
}

// Scan returns the sorted candidate command names in a shell script body.
// Here-document bodies and comments are skipped, as are builtins, tokens
// of a single character, options, the script's own name and anything that
// is not identifier-like.
func Scan(body, self string, builtins library.Set) []string {
	self = filepath.Base(self)
	found := make(library.Set)

	var (
		delim string
		dash  bool
	)
	s := bufio.NewScanner(strings.NewReader(body))
	s.Buffer(nil, 1<<20)
	for s.Scan() {
		if delim != "" {
			term := s.Text()
			if dash {
				term = strings.TrimLeft(term, "\t")
			}
			if term == delim {
				delim = ""
			}
			continue
		}
		line := strings.TrimSpace(s.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if d, rest, tabs, ok := hereDoc(line); ok {
			delim, dash, line = d, tabs, rest
		}
		for _, tok := range strings.FieldsFunc(line, isSeparator) {
			if tok[0] == '#' {
				break
			}
			if len(tok) <= 1 || tok == self || tok[0] == '-' ||
				builtins.Has(tok) || strings.ContainsAny(tok, rejectChars) {
				continue
			}
			found.Add(tok)
		}
	}
	return found.Sorted()
}

// hereDoc finds a here-document redirection on line. It returns the
// delimiter, the line with the redirection removed and whether the <<-
// form strips leading tabs from the body. Here-strings are not
// here-documents.
func hereDoc(line string) (string, string, bool, bool) {
	for i := 0; i+1 < len(line); i++ {
		if line[i] != '<' || line[i+1] != '<' {
			continue
		}
		if i+2 < len(line) && line[i+2] == '<' {
			i += 2
			continue
		}
		j := i + 2
		dash := j < len(line) && line[j] == '-'
		if dash {
			j++
		}
		for j < len(line) && (line[j] == ' ' || line[j] == '\t') {
			j++
		}
		k := j
		for k < len(line) && !isSeparator(rune(line[k])) && line[k] != '<' && line[k] != '>' {
			k++
		}
		d := strings.Trim(line[j:k], `'"\`)
		if d == "" {
			return "", line, false, false
		}
		return d, line[:i] + " " + line[k:], dash, true
	}
	return "", line, false, false
}
