package library

import (
	"sort"
	"strings"
)

// Set is an unordered set of absolute paths
type Set map[string]struct{}

// NewSet creates a set holding paths
func NewSet(paths ...string) Set {
	s := make(Set, len(paths))
	s.Add(paths...)
	return s
}

// Add inserts paths into the set
func (s Set) Add(paths ...string) {
	for _, p := range paths {
		s[p] = struct{}{}
	}
}

// Has reports whether p is a member
func (s Set) Has(p string) bool {
	_, ok := s[p]
	return ok
}

// Merge adds every member of o
func (s Set) Merge(o Set) {
	for p := range o {
		s[p] = struct{}{}
	}
}

// Sorted returns the members in lexical order
func (s Set) Sorted() []string {
	ret := make([]string, 0, len(s))
	for p := range s {
		ret = append(ret, p)
	}
	sort.Strings(ret)
	return ret
}

func (s Set) String() string {
	return strings.Join(s.Sorted(), " ")
}
