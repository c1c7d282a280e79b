package types

import (
	"path"
	"sort"
	"strings"
)

// NodeSource identifies one compilable unit. It is a slash-separated path
// relative to the target's base directory.
type NodeSource string

// NewNodeSource normalises a relative path into a NodeSource.
func NewNodeSource(rel string) NodeSource {
	rel = strings.ReplaceAll(rel, "\\", "/")
	return NodeSource(strings.TrimPrefix(path.Clean(rel), "./"))
}

// String implements fmt.Stringer
func (s NodeSource) String() string {
	return string(s)
}

// Base returns the last path segment of the source.
func (s NodeSource) Base() string {
	return path.Base(string(s))
}

// Ext returns the file extension of the source, including the dot.
func (s NodeSource) Ext() string {
	return path.Ext(string(s))
}

// Digest is a content hash used only for equality comparison. The empty
// Digest is reserved as the "dirty" sentinel.
type Digest string

// IsEmpty reports whether d is the dirty sentinel.
func (d Digest) IsEmpty() bool {
	return d == ""
}

// SortSources sorts sources in place and returns them.
func SortSources(sources []NodeSource) []NodeSource {
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

// SourceStrings converts sources to plain strings, keeping order.
func SourceStrings(sources []NodeSource) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = string(s)
	}
	return out
}
