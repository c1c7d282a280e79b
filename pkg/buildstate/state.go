package buildstate

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/snapshot"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// FormatVersion changes whenever the encoding of State changes. A state file
// with another version is treated as corrupt.
const FormatVersion = 1

// State is the persisted configuration state
type State struct {
	Version         int                               `msgpack:"v"`
	SourceOrder     []types.NodeSource                `msgpack:"so"`
	Sources         map[types.NodeSource]types.Digest `msgpack:"s"`
	LibraryOrder    []string                          `msgpack:"lo"`
	Libraries       map[string]types.Digest           `msgpack:"l"`
	FlagsDigest     types.Digest                      `msgpack:"f"`
	ClasspathDigest types.Digest                      `msgpack:"c"`
}

// New captures the given snapshots and digests
func New(sources *snapshot.Snapshot[types.NodeSource], libraries *snapshot.Snapshot[string], flags, classpath types.Digest) *State {
	return &State{
		Version:         FormatVersion,
		SourceOrder:     append([]types.NodeSource(nil), sources.Elements()...),
		Sources:         sources.Digests(),
		LibraryOrder:    append([]string(nil), libraries.Elements()...),
		Libraries:       libraries.Digests(),
		FlagsDigest:     flags,
		ClasspathDigest: classpath,
	}
}

// SourceSnapshot returns the recorded source snapshot
func (s *State) SourceSnapshot() *snapshot.Snapshot[types.NodeSource] {
	return snapshot.FromMap(s.SourceOrder, s.Sources)
}

// LibrarySnapshot returns the recorded library snapshot
func (s *State) LibrarySnapshot() *snapshot.Snapshot[string] {
	return snapshot.FromMap(s.LibraryOrder, s.Libraries)
}

// Load reads the state file. A missing file yields (nil, nil); a file that
// can't be decoded yields an ErrStateCorrupt error.
func Load(fs types.FS, path string) (*State, error) {
	data, err := fs.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrStateLoad, "failed to read state %s", path)
	}

	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrStateCorrupt, "failed to decompress state %s", path)
	}
	var s State
	if err := msgpack.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrapf(err, errors.ErrStateCorrupt, "failed to decode state %s", path)
	}
	if s.Version != FormatVersion {
		return nil, errors.Newf(errors.ErrStateCorrupt, "state %s has format %d, expected %d", path, s.Version, FormatVersion).
			WithDetail("path", path)
	}
	return &s, nil
}

// Save writes the state file through a temporary file and a rename
func Save(fs types.FS, path string, s *State) error {
	raw, err := msgpack.Marshal(s)
	if err != nil {
		return errors.Wrap(err, errors.ErrStateWrite, "failed to encode state")
	}
	data := snappy.Encode(nil, raw)

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create state dir for %s", path)
	}
	tmp := path + ".tmp-" + uuid.NewString()
	if err := fs.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrStateWrite, "failed to write %s", tmp)
	}
	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)
		return errors.Wrapf(err, errors.ErrStateWrite, "failed to replace state %s", path)
	}
	return nil
}

// FlagsDigest hashes the builder arguments in order
func FlagsDigest(args []string) types.Digest {
	return digestOf(args)
}

// ClasspathDigest hashes the structure of the classpath: which entries, in
// which order. Content changes of entries are tracked by the library
// snapshot instead.
func ClasspathDigest(paths []string) types.Digest {
	return digestOf(paths)
}

func digestOf(items []string) types.Digest {
	h := xxhash.New()
	for _, item := range items {
		_, _ = h.WriteString(item)
		_, _ = h.Write([]byte{0})
	}
	return types.Digest(strconv.FormatUint(h.Sum64(), 16))
}
