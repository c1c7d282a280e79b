package snapshot

import (
	"github.com/arthur-debert/incr/pkg/types"
)

// SourceDelta is the per-round change set over compilable sources. It starts
// from a Diff between the past baseline and the present (base) snapshot and
// lets callers flag extra sources dirty when the reason to recompile is a
// dependency effect rather than a content change.
//
// A SourceDelta belongs to exactly one build and is not safe for concurrent
// use.
type SourceDelta struct {
	base         *Snapshot[types.NodeSource]
	changed      map[types.NodeSource]bool
	deleted      []types.NodeSource
	recompileAll bool
}

// NewSourceDelta diffs base against past. A nil past marks every base
// source as modified.
func NewSourceDelta(base, past *Snapshot[types.NodeSource]) *SourceDelta {
	d := NewBaseDelta(base)
	diff := Diff(past, base)
	for _, src := range diff.Modified {
		d.changed[src] = true
	}
	d.deleted = diff.Deleted
	return d
}

// NewBaseDelta returns a delta over base with no changes
func NewBaseDelta(base *Snapshot[types.NodeSource]) *SourceDelta {
	if base == nil {
		base = Empty[types.NodeSource]()
	}
	return &SourceDelta{
		base:    base,
		changed: make(map[types.NodeSource]bool),
	}
}

// NewRecompileAllDelta returns a delta over base with every source flagged
func NewRecompileAllDelta(base *Snapshot[types.NodeSource]) *SourceDelta {
	d := NewBaseDelta(base)
	d.MarkRecompileAll()
	return d
}

// Base returns the present snapshot the delta is computed against
func (d *SourceDelta) Base() *Snapshot[types.NodeSource] {
	return d.base
}

// MarkRecompile flags src dirty independently of its digest. Sources that are
// not part of the base snapshot can't be compiled and are ignored. It reports
// whether the source was newly flagged.
func (d *SourceDelta) MarkRecompile(src types.NodeSource) bool {
	if !d.base.Contains(src) || d.changed[src] {
		return false
	}
	d.changed[src] = true
	return true
}

// MarkRecompileAll flags every base source
func (d *SourceDelta) MarkRecompileAll() {
	d.recompileAll = true
}

// IsRecompileAll reports whether the whole target is recompiled
func (d *SourceDelta) IsRecompileAll() bool {
	return d.recompileAll
}

// IsMarked reports whether src is flagged dirty
func (d *SourceDelta) IsMarked(src types.NodeSource) bool {
	if !d.base.Contains(src) {
		return false
	}
	return d.recompileAll || d.changed[src]
}

// Modified returns the sources to compile, in base order
func (d *SourceDelta) Modified() []types.NodeSource {
	if d.recompileAll {
		out := make([]types.NodeSource, d.base.Len())
		copy(out, d.base.Elements())
		return out
	}
	var out []types.NodeSource
	for _, src := range d.base.Elements() {
		if d.changed[src] {
			out = append(out, src)
		}
	}
	return out
}

// Deleted returns sources present in the past baseline but gone now
func (d *SourceDelta) Deleted() []types.NodeSource {
	return d.deleted
}

// HasChanges reports whether there is anything to compile or clean up
func (d *SourceDelta) HasChanges() bool {
	if len(d.deleted) > 0 {
		return true
	}
	if d.recompileAll {
		return d.base.Len() > 0
	}
	return len(d.changed) > 0
}

// ChangedCount returns the number of modified plus deleted sources
func (d *SourceDelta) ChangedCount() int {
	return len(d.Modified()) + len(d.deleted)
}

// ChangedRatio returns the changed count as a percentage of the base size.
// An empty base reports zero.
func (d *SourceDelta) ChangedRatio() float64 {
	if d.base.Len() == 0 {
		return 0
	}
	return float64(d.ChangedCount()) * 100 / float64(d.base.Len())
}

// Merge folds other's flagged sources into d. Deleted information of d is
// kept; a recompile-all in other escalates d.
func (d *SourceDelta) Merge(other *SourceDelta) {
	if other == nil {
		return
	}
	if other.recompileAll {
		d.recompileAll = true
		return
	}
	for src := range other.changed {
		d.MarkRecompile(src)
	}
}

// AsSnapshot projects the delta into tomorrow's baseline. Flagged sources
// report the empty digest, so a source whose recompilation didn't complete
// stays dirty until a successful compile records its real digest.
func (d *SourceDelta) AsSnapshot() *Snapshot[types.NodeSource] {
	return NewSnapshot(d.base.Elements(), func(src types.NodeSource) types.Digest {
		if d.IsMarked(src) {
			return ""
		}
		digest, _ := d.base.Digest(src)
		return digest
	})
}
