// pkg/depgraph/store_test.go
// TEST TYPE: Integration Test
// DEPENDENCIES: bolt database in a temp dir
// PURPOSE: Verify differentiation and integration over the persistent graph

package depgraph

import (
	"path/filepath"
	"testing"

	"github.com/arthur-debert/incr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func node(id, src, api string, usages ...string) Node {
	return Node{
		ID:        id,
		Sources:   []types.NodeSource{types.NodeSource(src)},
		Outputs:   []string{id + ".class"},
		APIDigest: types.Digest(api),
		Usages:    usages,
	}
}

// seed integrates a first full picture of the graph
func seed(t *testing.T, s *Store, nodes ...Node) {
	t.Helper()
	var srcs []types.NodeSource
	for _, n := range nodes {
		srcs = append(srcs, n.Sources...)
	}
	delta := s.CreateDelta(srcs, nil, false).AddNodes(nodes...)
	res, err := s.Differentiate(delta, DifferentiateParams{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Integrate(res))
}

func chunk(srcs ...string) func(types.NodeSource) bool {
	set := make(map[types.NodeSource]bool)
	for _, s := range srcs {
		set[types.NodeSource(s)] = true
	}
	return func(src types.NodeSource) bool { return set[src] }
}

func TestStore_IntegratePersists(t *testing.T) {
	s, path := openStore(t)
	seed(t, s, node("A", "A.java", "1"), node("B", "B.java", "1", "A"))

	require.NoError(t, s.Close())
	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	nodes, err := reopened.NodesOf("B.java")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "B", nodes[0].ID)
	assert.Equal(t, []string{"A"}, nodes[0].Usages)

	outs, err := reopened.OutputsOf([]types.NodeSource{"A.java", "B.java"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A.class", "B.class"}, outs)

	count, err := reopened.NodeCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStore_Differentiate(t *testing.T) {
	tests := []struct {
		name            string
		delta           func(s *Store) *Delta
		params          DifferentiateParams
		external        []*Subgraph
		wantIncremental bool
		wantAffected    []types.NodeSource
		wantChanged     []string
	}{
		{
			name: "api_change_affects_users",
			delta: func(s *Store) *Delta {
				return s.CreateDelta([]types.NodeSource{"A.java"}, nil, false).AddNodes(node("A", "A.java", "2"))
			},
			params:          DifferentiateParams{CalculateAffected: true},
			wantIncremental: true,
			wantAffected:    []types.NodeSource{"B.java", "C.java"},
			wantChanged:     []string{"A"},
		},
		{
			name: "body_change_affects_nobody",
			delta: func(s *Store) *Delta {
				return s.CreateDelta([]types.NodeSource{"A.java"}, nil, false).AddNodes(node("A", "A.java", "1"))
			},
			params:          DifferentiateParams{CalculateAffected: true},
			wantIncremental: true,
		},
		{
			name: "affected_disabled",
			delta: func(s *Store) *Delta {
				return s.CreateDelta([]types.NodeSource{"A.java"}, nil, false).AddNodes(node("A", "A.java", "2"))
			},
			wantIncremental: true,
			wantChanged:     []string{"A"},
		},
		{
			name: "chunk_filter",
			delta: func(s *Store) *Delta {
				return s.CreateDelta([]types.NodeSource{"A.java"}, nil, false).AddNodes(node("A", "A.java", "2"))
			},
			params:          DifferentiateParams{CalculateAffected: true, BelongsToChunk: chunk("A.java", "C.java")},
			wantIncremental: true,
			wantAffected:    []types.NodeSource{"C.java"},
			wantChanged:     []string{"A"},
		},
		{
			name: "source_only_deleted",
			delta: func(s *Store) *Delta {
				return s.CreateDelta(nil, []types.NodeSource{"B.java"}, true)
			},
			params:          DifferentiateParams{CalculateAffected: true},
			wantIncremental: true,
			wantAffected:    []types.NodeSource{"C.java"},
			wantChanged:     []string{"B"},
		},
		{
			name: "source_only_modified_is_unknown",
			delta: func(s *Store) *Delta {
				return s.CreateDelta([]types.NodeSource{"A.java"}, nil, true)
			},
			params:          DifferentiateParams{CalculateAffected: true},
			wantIncremental: true,
		},
		{
			name: "sibling_duplicate",
			delta: func(s *Store) *Delta {
				return s.CreateDelta([]types.NodeSource{"C.java"}, nil, false).
					AddNodes(node("C", "C.java", "1", "B"), node("A", "C.java", "1"))
			},
			params:          DifferentiateParams{CalculateAffected: true},
			wantIncremental: true,
			wantAffected:    []types.NodeSource{"A.java", "B.java"},
			wantChanged:     []string{"A"},
		},
		{
			name: "constant_change",
			delta: func(s *Store) *Delta {
				return s.CreateDelta([]types.NodeSource{"K.java"}, nil, false).AddNodes(node("K", "K.java", "2"))
			},
			params: DifferentiateParams{CalculateAffected: true},
		},
		{
			name: "constant_change_incremental",
			delta: func(s *Store) *Delta {
				n := node("K", "K.java", "2")
				n.Constant = true
				return s.CreateDelta([]types.NodeSource{"K.java"}, nil, false).AddNodes(n)
			},
			params:          DifferentiateParams{CalculateAffected: true, ProcessConstantsIncrementally: true},
			wantIncremental: true,
			wantAffected:    []types.NodeSource{"C.java"},
			wantChanged:     []string{"K"},
		},
		{
			name: "external_duplicate",
			delta: func(s *Store) *Delta {
				return s.CreateDelta([]types.NodeSource{"D.java"}, nil, false).AddNodes(node("lib/Util", "D.java", "1"))
			},
			params:   DifferentiateParams{CalculateAffected: true},
			external: []*Subgraph{NewSubgraph("util-abi.jar", []Node{node("lib/Util", "util-abi.jar!/lib/Util.class", "x")})},
		},
		{
			name: "past_nodes_for_foreign_sources",
			delta: func(s *Store) *Delta {
				past := node("lib/Util", "util-abi.jar!/lib/Util.class", "x")
				now := node("lib/Util", "util-abi.jar!/lib/Util.class", "y")
				return s.CreateDelta([]types.NodeSource{"util-abi.jar!/lib/Util.class"}, nil, false).
					AddPastNodes(past).AddNodes(now)
			},
			params:          DifferentiateParams{CalculateAffected: true},
			wantIncremental: true,
			wantAffected:    []types.NodeSource{"B.java"},
			wantChanged:     []string{"lib/Util"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := openStore(t)
			k := node("K", "K.java", "1")
			k.Constant = true
			seed(t, s,
				node("A", "A.java", "1"),
				node("B", "B.java", "1", "A", "lib/Util"),
				node("C", "C.java", "1", "A", "B", "K"),
				k,
			)

			res, err := s.Differentiate(tt.delta(s), tt.params, tt.external)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIncremental, res.Incremental)
			if !tt.wantIncremental {
				assert.NotEmpty(t, res.Reason)
				return
			}
			assert.Equal(t, tt.wantAffected, res.AffectedSources)
			assert.Equal(t, tt.wantChanged, res.ChangedNodes)
		})
	}
}

func TestStore_IntegrateReplacesAndDeletes(t *testing.T) {
	s, _ := openStore(t)
	seed(t, s, node("A", "A.java", "1"), node("B", "B.java", "1", "A"))

	// B now uses nothing and A is gone
	delta := s.CreateDelta([]types.NodeSource{"B.java"}, []types.NodeSource{"A.java"}, false).
		AddNodes(node("B", "B.java", "2"))
	res, err := s.Differentiate(delta, DifferentiateParams{CalculateAffected: true}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Integrate(res))

	nodes, err := s.NodesOf("A.java")
	require.NoError(t, err)
	assert.Empty(t, nodes)

	// A reappears with a new API: nobody uses it any more
	delta = s.CreateDelta([]types.NodeSource{"A.java"}, nil, false).AddNodes(node("A", "A.java", "3"))
	res, err = s.Differentiate(delta, DifferentiateParams{CalculateAffected: true}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.AffectedSources)
}

func TestStore_SourceOnlyIntegrateKeepsNothing(t *testing.T) {
	s, _ := openStore(t)
	seed(t, s, node("A", "A.java", "1"))

	res, err := s.Differentiate(s.CreateDelta(nil, []types.NodeSource{"A.java"}, true), DifferentiateParams{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Integrate(res))

	count, err := s.NodeCount()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
