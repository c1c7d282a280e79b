// Package graphupdater turns dependency graph differentiation into changes of
// the round's SourceDelta.
//
// The same algorithm runs twice per round. Before compilation it is
// speculative: it widens the compile scope with sources affected by library
// changes or deleted sources and never touches the stored graph. After
// compilation it computes the sources affected by what the compilers just
// produced and, when the round had no errors, integrates the result into the
// graph. That integration is the only point where the graph is durably
// changed.
//
// An Updater lives for one build. It keeps the set of affected sources seen
// across rounds so a build that keeps affecting the same sources can be cut
// short by escalating to a full recompile.
package graphupdater
