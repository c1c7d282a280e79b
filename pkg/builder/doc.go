// Package builder is the build orchestrator.
//
// A build starts by deciding whether the target can be built incrementally.
// It can't when there is no previous output, a rebuild was requested, the
// compiler flags or the classpath structure changed, or more sources changed
// than the configured threshold allows. Otherwise the source delta is
// widened with the sources affected by changed libraries and by deleted
// sources before any compiler runs.
//
// Compilation then runs in rounds. Each round hands the modified sources to
// the registered compilers in order, feeds what they produced to the graph
// updater and continues with the sources it reports affected. Diagnostics of
// the first round are held back: when that round fails but the graph shows
// a wider scope, the round is retried once with the wider scope and the
// first attempt's messages are dropped.
//
// Whatever happens, the configuration state is written and storage is
// closed before Build returns.
package builder
