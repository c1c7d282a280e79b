// Package storage owns every persistent resource of one build.
//
// A Manager is created at the start of a build and closed exactly once at
// its end. Resources are opened on first use: the dependency graph store,
// the primary and ABI output archives, the scratch store used to stage
// compiler outputs, and the class resolver. Close either saves or discards
// changes; a resource failing to close is reported and the remaining ones
// are still closed.
//
// Two filesystem primitives back the build state. Trash makes deletes
// appear immediate even when a file can't be removed yet, by moving it into
// a per-target trash directory that is purged by the next build. Backup keeps
// a copy of every binary dependency and output archive under a key derived
// from its absolute path, so the next build can diff against them even after
// the originals changed or disappeared.
package storage
