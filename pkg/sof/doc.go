// Package sof materializes a library closure into a shared object folder.
//
// Every regular file is copied once into the shared runtime store, keyed by
// its real absolute path, and hardlinked from there into the folder of each
// application that needs it. The store is append-only and shared between
// concurrent launches: a store entry is created exclusively and an entry
// that already exists is never rewritten.
package sof
