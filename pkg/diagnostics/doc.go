// Package diagnostics carries compiler and build messages to the user.
//
// A Reporter is the build's top-level sink. During the first round of a
// build messages go through a BufferingSink, which is flushed when the round
// turns out to be final and discarded when the round is retried with a
// wider scope. Later rounds use a PassThroughSink.
package diagnostics
