// Package buildstate persists the configuration state of a target: the
// source and library snapshots a build ended with and the digests of the
// compiler flags and the classpath structure. The next build diffs against
// it.
package buildstate
