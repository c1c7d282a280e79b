// Package testutil provides utilities for testing incr components.
//
// Key components:
//   - TestEnvironment: a target laid out in a temp directory (sources,
//     libraries, data directory, output archives) with snapshot helpers
//   - ScriptedRunner: a compiler.Runner whose classes, usages and failures
//     are scripted per test, recording every invocation
//   - WriteArchive / ReadArchive: zip archives for libraries and outputs
//
// Usage guidelines:
//   - Builds need a real filesystem; the dependency graph is a bolt file
//   - All test data should be defined inline, not in external files
//   - Each test should be completely isolated with no shared state
package testutil
