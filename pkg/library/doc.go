// Package library computes the transitive closure of shared objects needed
// by binaries and directories.
//
// A Resolver is a single resolution session. It owns the dependency
// closure, the set of paths already searched and the deferred wildcard
// patterns. The closure only grows for the lifetime of the session.
//
// Direct dependencies are obtained from an ldd.Querier. Files are expanded
// breadth first: every wave of unseen paths is queried in parallel on a
// bounded pool and merged by the calling goroutine, which seeds the next
// wave. Directories are resolved as a whole and their external dependency
// set is cached on disk under CacheDir.
package library
