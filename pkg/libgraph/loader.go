package libgraph

import (
	"bytes"
	"os"
	"strconv"
	"strings"

	"github.com/arthur-debert/incr/pkg/depgraph"
	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/logging"
	"github.com/arthur-debert/incr/pkg/snapshot"
	"github.com/arthur-debert/incr/pkg/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
)

// DefaultCacheSize is used when the configured capacity is not positive
const DefaultCacheSize = 64

const classSuffix = ".class"

// Loader reads library subgraphs through an LRU cache
type Loader struct {
	cache  *lru.Cache[types.Digest, *depgraph.Subgraph]
	logger zerolog.Logger
}

// NewLoader creates a loader caching up to size subgraphs
func NewLoader(size int) *Loader {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[types.Digest, *depgraph.Subgraph](size)
	if err != nil {
		// only reachable with a non-positive size
		panic(err)
	}
	return &Loader{cache: cache, logger: logging.GetLogger("libgraph")}
}

// Load returns the subgraph of the archive at path. name is the library's
// logical name and prefixes every node source, so the backup copy and the
// live copy of one library produce comparable subgraphs. An empty digest
// bypasses the cache; any other digest must match the archive's content.
func (l *Loader) Load(name, path string, digest types.Digest) (*depgraph.Subgraph, error) {
	if !digest.IsEmpty() {
		if sg, ok := l.cache.Get(digest); ok && sg.Name == name {
			l.logger.Trace().Str("library", name).Msg("Subgraph cache hit")
			return sg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrLibraryLoad, "failed to open library %s", path)
	}
	if !digest.IsEmpty() {
		if actual := snapshot.DigestBytes(data); actual != digest {
			return nil, errors.Newf(errors.ErrLibraryLoad, "library %s changed since it was recorded (digest %s, expected %s)", path, actual, digest)
		}
	}
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrLibraryLoad, "failed to open library %s", path)
	}

	var nodes []depgraph.Node
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, classSuffix) {
			continue
		}
		nodes = append(nodes, depgraph.Node{
			ID:        strings.TrimSuffix(f.Name, classSuffix),
			Sources:   []types.NodeSource{EntrySource(name, f.Name)},
			APIDigest: types.Digest(strconv.FormatUint(uint64(f.CRC32), 16)),
		})
	}

	sg := depgraph.NewSubgraph(name, nodes)
	if !digest.IsEmpty() {
		l.cache.Add(digest, sg)
	}
	l.logger.Debug().Str("library", name).Int("classes", len(nodes)).Msg("Loaded library subgraph")
	return sg, nil
}

// Len returns the number of cached subgraphs
func (l *Loader) Len() int {
	return l.cache.Len()
}

// EntrySource names the node source of an archive entry
func EntrySource(library, entry string) types.NodeSource {
	return types.NodeSource(library + "!/" + entry)
}

// DiffSubgraphs compares two subgraphs of the same library source by source.
// A nil past reports every present source as modified.
func DiffSubgraphs(past, present *depgraph.Subgraph) (modified, deleted []types.NodeSource) {
	pastOrder, pastDigests := past.SourceDigests()
	order, digests := present.SourceDigests()
	var pastSnap *snapshot.Snapshot[types.NodeSource]
	if past != nil {
		pastSnap = snapshot.FromMap(pastOrder, pastDigests)
	}
	delta := snapshot.Diff(pastSnap, snapshot.FromMap(order, digests))
	return delta.Modified, delta.Deleted
}
