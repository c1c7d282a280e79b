package depgraph

import (
	"github.com/arthur-debert/incr/pkg/types"
)

// Delta is a change set handed to Differentiate
type Delta struct {
	modified   []types.NodeSource
	deleted    []types.NodeSource
	sourceOnly bool
	nodes      []Node
	pastNodes  []Node
}

// NewDelta creates a delta. A source-only delta carries no produced nodes;
// it is used before compilation, when only file-level changes are known.
func NewDelta(modified, deleted []types.NodeSource, sourceOnly bool) *Delta {
	return &Delta{modified: modified, deleted: deleted, sourceOnly: sourceOnly}
}

// AddNodes records nodes produced for the delta's modified sources
func (d *Delta) AddNodes(nodes ...Node) *Delta {
	d.nodes = append(d.nodes, nodes...)
	return d
}

// AddPastNodes records the previous state of sources the store doesn't own,
// such as the classes of a changed library
func (d *Delta) AddPastNodes(nodes ...Node) *Delta {
	d.pastNodes = append(d.pastNodes, nodes...)
	return d
}

func (d *Delta) Modified() []types.NodeSource { return d.modified }
func (d *Delta) Deleted() []types.NodeSource  { return d.deleted }
func (d *Delta) IsSourceOnly() bool           { return d.sourceOnly }
func (d *Delta) Nodes() []Node                { return d.nodes }

// IsEmpty reports whether the delta names no source
func (d *Delta) IsEmpty() bool {
	return len(d.modified) == 0 && len(d.deleted) == 0
}

func (d *Delta) sourceSet() map[types.NodeSource]bool {
	set := make(map[types.NodeSource]bool, len(d.modified)+len(d.deleted))
	for _, s := range d.modified {
		set[s] = true
	}
	for _, s := range d.deleted {
		set[s] = true
	}
	return set
}

// DifferentiateParams scopes a differentiation
type DifferentiateParams struct {
	// BelongsToChunk limits affection and structure checks to the sources of
	// the chunk being compiled. Nil means every source belongs.
	BelongsToChunk func(types.NodeSource) bool
	// CalculateAffected enables the affected-sources computation
	CalculateAffected bool
	// ProcessConstantsIncrementally allows constant changes to be handled
	// through usages; otherwise a changed constant makes the result
	// non-incremental
	ProcessConstantsIncrementally bool
}

func (p DifferentiateParams) belongs(src types.NodeSource) bool {
	return p.BelongsToChunk == nil || p.BelongsToChunk(src)
}

// DifferentiateResult is the outcome of Differentiate
type DifferentiateResult struct {
	// Incremental is false when the change can't be handled by recompiling
	// a subset of sources
	Incremental bool
	// AffectedSources are sources outside the delta that must be recompiled
	AffectedSources []types.NodeSource
	// ChangedNodes are the IDs whose API changed or that disappeared
	ChangedNodes []string
	// Reason explains a non-incremental verdict
	Reason string

	delta *Delta
}

// Delta returns the delta the result was computed from
func (r *DifferentiateResult) Delta() *Delta {
	return r.delta
}

// Graph is the dependency graph as seen by the build
type Graph interface {
	CreateDelta(modified, deleted []types.NodeSource, sourceOnly bool) *Delta
	Differentiate(delta *Delta, params DifferentiateParams, externalParts []*Subgraph) (*DifferentiateResult, error)
	// Integrate durably commits a differentiation result
	Integrate(result *DifferentiateResult) error
	NodesOf(src types.NodeSource) ([]Node, error)
	Close() error
}
