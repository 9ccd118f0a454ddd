// Package ldd parses ldd(1) output and queries the dynamic linker for the
// direct shared object dependencies of a file.
//
// ldd(1) may execute the file it inspects, so it must only be pointed at
// files the caller is prepared to run.
package ldd
