// Package filesystem provides filesystem implementations for incr.
//
// This package contains implementations of the types.FS interface: the
// standard OS filesystem used by real builds, and an afero-backed one used by
// tests. The afero variant has no hard links, which makes it the natural way
// to exercise the copy fallback of library backups.
package filesystem
