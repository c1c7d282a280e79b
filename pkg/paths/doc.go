// Package paths provides centralized path handling for incr.
//
// Every build target owns one data directory. Its layout (configuration
// state file, dependency-graph store, library backup directory, trash
// directory and scratch store) is resolved here and nowhere else, so the
// storage manager stays the sole writer of the directory.
package paths
