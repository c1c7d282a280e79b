package depgraph

import (
	"time"

	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/logging"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketNodes   = []byte("nodes")
	bucketSources = []byte("sources")
	bucketUsages  = []byte("usages")
)

// Store is a Graph persisted in a bolt database. Every Integrate is one
// transaction, so the on-disk graph is never half-updated.
type Store struct {
	db     *bolt.DB
	path   string
	logger zerolog.Logger
}

var _ Graph = (*Store)(nil)

// Open opens or creates the graph store at path
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrGraphOpen, "failed to open dependency graph %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketNodes, bucketSources, bucketUsages} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, errors.ErrGraphOpen, "failed to initialise dependency graph %s", path)
	}
	return &Store{db: db, path: path, logger: logging.GetLogger("depgraph")}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close releases the database
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateDelta implements Graph
func (s *Store) CreateDelta(modified, deleted []types.NodeSource, sourceOnly bool) *Delta {
	return NewDelta(modified, deleted, sourceOnly)
}

// NodesOf returns the stored nodes produced from src
func (s *Store) NodesOf(src types.NodeSource) ([]Node, error) {
	var nodes []Node
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		nodes, err = nodesOf(tx, src)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrGraphRead, "failed to read nodes of %s", src)
	}
	return nodes, nil
}

// OutputsOf returns the output entries of every node produced from sources
func (s *Store) OutputsOf(sources []types.NodeSource) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, src := range sources {
		nodes, err := s.NodesOf(src)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			for _, o := range n.Outputs {
				if !seen[o] {
					seen[o] = true
					out = append(out, o)
				}
			}
		}
	}
	return out, nil
}

// NodeCount returns the number of stored nodes
func (s *Store) NodeCount() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketNodes).Stats().KeyN
		return nil
	})
	return count, err
}

// Differentiate implements Graph
func (s *Store) Differentiate(delta *Delta, params DifferentiateParams, externalParts []*Subgraph) (*DifferentiateResult, error) {
	result := &DifferentiateResult{Incremental: true, delta: delta}
	err := s.db.View(func(tx *bolt.Tx) error {
		return differentiate(tx, delta, params, externalParts, result)
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrGraphRead, "failed to differentiate dependency graph")
	}
	s.logger.Debug().
		Bool("incremental", result.Incremental).
		Int("changedNodes", len(result.ChangedNodes)).
		Int("affected", len(result.AffectedSources)).
		Msg("Differentiated")
	return result, nil
}

func differentiate(tx *bolt.Tx, delta *Delta, params DifferentiateParams, externalParts []*Subgraph, result *DifferentiateResult) error {
	deltaSources := delta.sourceSet()
	deleted := make(map[types.NodeSource]bool, len(delta.deleted))
	for _, src := range delta.deleted {
		deleted[src] = true
	}

	// Previous picture of the delta's sources: stored nodes first, then the
	// past nodes supplied with the delta for sources the store doesn't own.
	oldNodes := make(map[string]Node)
	for src := range deltaSources {
		nodes, err := nodesOf(tx, src)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			for _, n := range delta.pastNodes {
				if n.HasSource(src) {
					nodes = append(nodes, n)
				}
			}
		}
		for _, n := range nodes {
			oldNodes[n.ID] = n
		}
	}

	newNodes := make(map[string]Node, len(delta.nodes))
	if !delta.sourceOnly {
		for _, n := range delta.nodes {
			newNodes[n.ID] = n
		}
	}

	changed := make(map[string]bool)
	for id, old := range oldNodes {
		if delta.sourceOnly {
			// Only deletions are certain before compiling.
			if allIn(old.Sources, deleted) {
				changed[id] = true
			}
			continue
		}
		now, ok := newNodes[id]
		if !ok || now.APIDigest != old.APIDigest || now.Constant != old.Constant {
			changed[id] = true
		}
	}

	affected := make(map[types.NodeSource]bool)
	addAffected := func(src types.NodeSource) {
		if !deltaSources[src] && params.belongs(src) {
			affected[src] = true
		}
	}

	for id, now := range newNodes {
		if _, existed := oldNodes[id]; existed {
			continue
		}
		if !anyBelongs(now.Sources, params) {
			continue
		}
		for _, part := range externalParts {
			if _, dup := part.Node(id); dup {
				result.Incremental = false
				result.Reason = "node " + id + " is also provided by " + part.Name
				return nil
			}
		}
		// A node that a sibling source already produces: the sibling has to be
		// recompiled to resolve the clash.
		stored, err := getNode(tx, id)
		if err != nil {
			return err
		}
		if stored != nil {
			for _, src := range stored.Sources {
				addAffected(src)
			}
			changed[id] = true
		}
	}

	if !params.ProcessConstantsIncrementally {
		for id := range changed {
			if old, ok := oldNodes[id]; ok && old.Constant {
				result.Incremental = false
				result.Reason = "constant " + id + " changed"
				return nil
			}
		}
	}

	result.ChangedNodes = sortedIDs(changed)
	if !params.CalculateAffected {
		return nil
	}

	for _, id := range result.ChangedNodes {
		users, err := getIDs(tx.Bucket(bucketUsages), id)
		if err != nil {
			return err
		}
		for _, user := range users {
			node, err := getNode(tx, user)
			if err != nil {
				return err
			}
			if node == nil {
				continue
			}
			for _, src := range node.Sources {
				addAffected(src)
			}
		}
	}

	for src := range affected {
		result.AffectedSources = append(result.AffectedSources, src)
	}
	types.SortSources(result.AffectedSources)
	return nil
}

// Integrate implements Graph
func (s *Store) Integrate(result *DifferentiateResult) error {
	delta := result.delta
	if delta == nil {
		return errors.New(errors.ErrInvalidInput, "differentiation result carries no delta")
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		for src := range delta.sourceSet() {
			nodes, err := nodesOf(tx, src)
			if err != nil {
				return err
			}
			for _, n := range nodes {
				if err := removeNode(tx, n); err != nil {
					return err
				}
			}
			if err := tx.Bucket(bucketSources).Delete([]byte(src)); err != nil {
				return err
			}
		}
		if delta.sourceOnly {
			return nil
		}
		for _, n := range delta.nodes {
			if err := putNode(tx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrGraphWrite, "failed to integrate dependency graph changes")
	}
	s.logger.Debug().Int("sources", len(delta.sourceSet())).Int("nodes", len(delta.nodes)).Msg("Integrated")
	return nil
}

func nodesOf(tx *bolt.Tx, src types.NodeSource) ([]Node, error) {
	ids, err := getIDs(tx.Bucket(bucketSources), string(src))
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		n, err := getNode(tx, id)
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, *n)
		}
	}
	return nodes, nil
}

func getNode(tx *bolt.Tx, id string) (*Node, error) {
	data := tx.Bucket(bucketNodes).Get([]byte(id))
	if data == nil {
		return nil, nil
	}
	var n Node
	if err := decode(data, &n); err != nil {
		return nil, errors.Wrapf(err, errors.ErrGraphRead, "corrupt node %s", id)
	}
	return &n, nil
}

func putNode(tx *bolt.Tx, n Node) error {
	// A node replacing an older one with the same ID drops the old links first.
	if old, err := getNode(tx, n.ID); err != nil {
		return err
	} else if old != nil {
		if err := removeNode(tx, *old); err != nil {
			return err
		}
	}
	data, err := encode(n)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucketNodes).Put([]byte(n.ID), data); err != nil {
		return err
	}
	for _, src := range n.Sources {
		if err := addID(tx.Bucket(bucketSources), string(src), n.ID); err != nil {
			return err
		}
	}
	for _, used := range n.Usages {
		if err := addID(tx.Bucket(bucketUsages), used, n.ID); err != nil {
			return err
		}
	}
	return nil
}

func removeNode(tx *bolt.Tx, n Node) error {
	if err := tx.Bucket(bucketNodes).Delete([]byte(n.ID)); err != nil {
		return err
	}
	for _, src := range n.Sources {
		if err := removeID(tx.Bucket(bucketSources), string(src), n.ID); err != nil {
			return err
		}
	}
	for _, used := range n.Usages {
		if err := removeID(tx.Bucket(bucketUsages), used, n.ID); err != nil {
			return err
		}
	}
	return nil
}

func getIDs(b *bolt.Bucket, key string) ([]string, error) {
	data := b.Get([]byte(key))
	if data == nil {
		return nil, nil
	}
	var ids []string
	if err := decode(data, &ids); err != nil {
		return nil, errors.Wrapf(err, errors.ErrGraphRead, "corrupt index entry %s", key)
	}
	return ids, nil
}

func putIDs(b *bolt.Bucket, key string, ids []string) error {
	if len(ids) == 0 {
		return b.Delete([]byte(key))
	}
	data, err := encode(ids)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

func addID(b *bolt.Bucket, key, id string) error {
	ids, err := getIDs(b, key)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	return putIDs(b, key, append(ids, id))
}

func removeID(b *bolt.Bucket, key, id string) error {
	ids, err := getIDs(b, key)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	return putIDs(b, key, kept)
}

func allIn(sources []types.NodeSource, set map[types.NodeSource]bool) bool {
	if len(sources) == 0 {
		return false
	}
	for _, s := range sources {
		if !set[s] {
			return false
		}
	}
	return true
}

func anyBelongs(sources []types.NodeSource, params DifferentiateParams) bool {
	for _, s := range sources {
		if params.belongs(s) {
			return true
		}
	}
	return false
}
