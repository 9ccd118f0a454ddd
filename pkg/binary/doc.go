// Package binary locates binaries and the commands their scripts invoke.
//
// Scripts are recognized by their interpreter directive. Every directive
// token is resolved as a binary and, for POSIX family shells, the body is
// scanned for further command names. Scanning is best effort: a missed
// command can be added explicitly, and input that is not UTF-8 is treated
// as a compiled binary.
package binary
