package ldd

import (
	"path/filepath"
	"strings"
)

// Normalize rewrites a path reported by the dynamic linker to the
// canonical merged-usr location: every lib64 component becomes lib and a
// legacy /lib prefix becomes /usr/lib.
func Normalize(p string) string {
	p = filepath.Clean(p)
	parts := strings.Split(p, "/")
	for i, c := range parts {
		if c == "lib64" {
			parts[i] = "lib"
		}
	}
	p = strings.Join(parts, "/")
	if p == "/lib" || strings.HasPrefix(p, "/lib/") {
		p = "/usr" + p
	}
	return p
}

// Dependencies returns the normalized, deduplicated resolved paths of entries
func Dependencies(entries []*Entry) []string {
	seen := make(map[string]struct{}, len(entries))
	ret := make([]string, 0, len(entries))
	for _, e := range entries {
		r := e.Resolved()
		if r == "" {
			continue
		}
		r = Normalize(r)
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		ret = append(ret, r)
	}
	return ret
}
