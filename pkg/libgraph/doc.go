// Package libgraph builds dependency subgraphs for binary dependencies.
//
// A tracked library (an ABI archive) contributes one node per class entry.
// The node ID is the entry name without the .class suffix, which is how
// compiled sources refer to the class in their usages, and the API digest is
// the entry's CRC-32. Comparing the subgraph of a library's backup with the
// one of its present copy tells which classes changed.
//
// Subgraphs are immutable and cached by the library's content digest, so the
// same archive content is only read once per process.
package libgraph
