package snapshot

import (
	"strconv"

	"github.com/arthur-debert/incr/pkg/types"
	"github.com/cespare/xxhash/v2"
)

// Snapshot is a read-only view over a set of elements and their digests.
// Element order is the insertion order and is used for deterministic listing.
type Snapshot[T comparable] struct {
	order   []T
	digests map[T]types.Digest
}

// NewSnapshot builds a snapshot. Duplicate elements keep their first
// position and their last digest.
func NewSnapshot[T comparable](elements []T, digest func(T) types.Digest) *Snapshot[T] {
	s := &Snapshot[T]{
		order:   make([]T, 0, len(elements)),
		digests: make(map[T]types.Digest, len(elements)),
	}
	for _, e := range elements {
		if _, ok := s.digests[e]; !ok {
			s.order = append(s.order, e)
		}
		s.digests[e] = digest(e)
	}
	return s
}

// FromMap builds a snapshot from an element order and a digest map.
// Elements missing from the map get the empty digest.
func FromMap[T comparable](order []T, digests map[T]types.Digest) *Snapshot[T] {
	return NewSnapshot(order, func(t T) types.Digest { return digests[t] })
}

// Empty returns a snapshot with no elements
func Empty[T comparable]() *Snapshot[T] {
	return NewSnapshot[T](nil, nil)
}

// Elements returns the elements in insertion order. The slice must not be
// modified.
func (s *Snapshot[T]) Elements() []T {
	if s == nil {
		return nil
	}
	return s.order
}

// Len returns the number of elements
func (s *Snapshot[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Contains reports whether t is part of the snapshot
func (s *Snapshot[T]) Contains(t T) bool {
	if s == nil {
		return false
	}
	_, ok := s.digests[t]
	return ok
}

// Digest returns the digest of t
func (s *Snapshot[T]) Digest(t T) (types.Digest, bool) {
	if s == nil {
		return "", false
	}
	d, ok := s.digests[t]
	return d, ok
}

// Digests returns a copy of the element to digest map
func (s *Snapshot[T]) Digests() map[T]types.Digest {
	out := make(map[T]types.Digest, s.Len())
	if s == nil {
		return out
	}
	for k, v := range s.digests {
		out[k] = v
	}
	return out
}

// DigestBytes hashes content into a Digest
func DigestBytes(content []byte) types.Digest {
	return types.Digest(strconv.FormatUint(xxhash.Sum64(content), 16))
}
