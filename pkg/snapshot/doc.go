// Package snapshot implements digest-based diffing between a past and a
// present collection of identifiable elements, and the source-specialised
// delta threaded through the build's compile rounds.
//
// A Snapshot is immutable once built. Diff compares two snapshots
// element-wise; SourceDelta adds the out-of-band "recompile" overlay, the
// recompile-all shortcut and the AsSnapshot projection that becomes the next
// build's baseline.
package snapshot
