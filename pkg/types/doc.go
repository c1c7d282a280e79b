// Package types defines the core types and interfaces shared across incr.
// This includes the NodeSource and Digest identifiers used by snapshots and
// the dependency graph, and the FS interface every persistent operation goes
// through.
package types
