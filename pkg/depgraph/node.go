package depgraph

import (
	"sort"

	"github.com/arthur-debert/incr/pkg/types"
)

// Node is one unit of the dependency graph
type Node struct {
	ID        string             `msgpack:"id" yaml:"id"`
	Sources   []types.NodeSource `msgpack:"src" yaml:"sources"`
	Outputs   []string           `msgpack:"out" yaml:"outputs"`
	APIDigest types.Digest       `msgpack:"api" yaml:"api_digest"`
	Usages    []string           `msgpack:"use" yaml:"usages"`
	// Constant marks nodes whose values are inlined by dependents
	Constant bool `msgpack:"const" yaml:"constant"`
}

// HasSource reports whether the node was produced from src
func (n Node) HasSource(src types.NodeSource) bool {
	for _, s := range n.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// Subgraph is a named, read-only set of nodes that lives outside the store,
// typically the graph of one binary dependency
type Subgraph struct {
	Name  string
	Nodes []Node
	byID  map[string]int
}

// NewSubgraph indexes nodes by ID
func NewSubgraph(name string, nodes []Node) *Subgraph {
	s := &Subgraph{Name: name, Nodes: nodes, byID: make(map[string]int, len(nodes))}
	for i, n := range nodes {
		s.byID[n.ID] = i
	}
	return s
}

// Node looks a node up by ID
func (s *Subgraph) Node(id string) (Node, bool) {
	if s == nil {
		return Node{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return Node{}, false
	}
	return s.Nodes[i], true
}

// SourceDigests returns, per source, a digest over the API digests of the
// nodes it produced. Two subgraphs can be diffed source by source with it.
func (s *Subgraph) SourceDigests() (order []types.NodeSource, digests map[types.NodeSource]types.Digest) {
	digests = make(map[types.NodeSource]types.Digest)
	if s == nil {
		return nil, digests
	}
	for _, n := range s.Nodes {
		for _, src := range n.Sources {
			if _, ok := digests[src]; !ok {
				order = append(order, src)
			}
			digests[src] += n.APIDigest
		}
	}
	return order, digests
}

// NodesOf returns the subgraph nodes produced from any of sources
func (s *Subgraph) NodesOf(sources []types.NodeSource) []Node {
	if s == nil {
		return nil
	}
	want := make(map[types.NodeSource]bool, len(sources))
	for _, src := range sources {
		want[src] = true
	}
	var out []Node
	for _, n := range s.Nodes {
		for _, src := range n.Sources {
			if want[src] {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

func sortedIDs(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
