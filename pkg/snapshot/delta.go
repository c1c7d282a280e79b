package snapshot

// Delta holds the difference between a past and a present snapshot
type Delta[T comparable] struct {
	// Modified lists present elements that are new or whose digest changed,
	// in present order
	Modified []T
	// Deleted lists past elements absent from the present, in past order
	Deleted []T
}

// HasChanges reports whether anything was modified or deleted
func (d Delta[T]) HasChanges() bool {
	return len(d.Modified) > 0 || len(d.Deleted) > 0
}

// Diff compares two snapshots. A nil past means every present element is
// modified.
func Diff[T comparable](past, present *Snapshot[T]) Delta[T] {
	var delta Delta[T]
	for _, t := range present.Elements() {
		now, _ := present.Digest(t)
		before, ok := past.Digest(t)
		if !ok || before != now {
			delta.Modified = append(delta.Modified, t)
		}
	}
	for _, t := range past.Elements() {
		if !present.Contains(t) {
			delta.Deleted = append(delta.Deleted, t)
		}
	}
	return delta
}
