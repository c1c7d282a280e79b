// Package compiler defines how the build drives compilers.
//
// A Runner compiles the sources it accepts and reports through two sinks:
// diagnostics go to a diagnostics.Sink, produced files and dependency graph
// nodes go to an OutputSink. Runners are kept in a Registry and invoked in
// registration order.
//
// Two runners ship with incr. ResourceRunner copies files into the output
// archive unchanged. ExecRunner runs an external compiler and reads back
// what it produced from a scratch directory.
package compiler
