// Package depgraph is the persistent inter-file dependency graph.
//
// The build orchestrator and the graph updater consume it only through the
// Graph interface: create a Delta from changed sources (optionally carrying
// the nodes a compiler produced), Differentiate it against the stored graph
// to learn which other sources are affected, and Integrate the result once
// the round is known to be good. Store is the bolt-backed implementation.
//
// Node identity is the node ID (for JVM targets the internal class name).
// A node's APIDigest summarises everything dependents can observe; a change
// in it, or the node disappearing, affects every node that lists the ID in
// its Usages.
package depgraph
