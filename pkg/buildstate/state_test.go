// pkg/buildstate/state_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: afero MemMapFs
// PURPOSE: Verify configuration state persistence and corruption handling

package buildstate

import (
	"testing"

	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/filesystem"
	"github.com/arthur-debert/incr/pkg/snapshot"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	fs := filesystem.NewMemoryFS()
	sources := snapshot.FromMap([]types.NodeSource{"b.java", "a.java"}, map[types.NodeSource]types.Digest{"a.java": "1", "b.java": ""})
	libs := snapshot.FromMap([]string{"/libs/x-abi.jar"}, map[string]types.Digest{"/libs/x-abi.jar": "9"})

	state := New(sources, libs, FlagsDigest([]string{"-g"}), ClasspathDigest([]string{"/libs/x-abi.jar"}))
	require.NoError(t, Save(fs, "/data/config-state.bin", state))

	loaded, err := Load(fs, "/data/config-state.bin")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, []types.NodeSource{"b.java", "a.java"}, loaded.SourceSnapshot().Elements(), "order survives")
	d, ok := loaded.SourceSnapshot().Digest("b.java")
	assert.True(t, ok)
	assert.True(t, d.IsEmpty(), "dirty sentinel survives")
	assert.False(t, snapshot.Diff(libs, loaded.LibrarySnapshot()).HasChanges())
	assert.Equal(t, state.FlagsDigest, loaded.FlagsDigest)
	assert.Equal(t, state.ClasspathDigest, loaded.ClasspathDigest)

	entries, err := fs.ReadDir("/data")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file left")
}

func TestLoad_Missing(t *testing.T) {
	state, err := Load(filesystem.NewMemoryFS(), "/data/none.bin")
	assert.NoError(t, err)
	assert.Nil(t, state)
}

func TestLoad_Corrupt(t *testing.T) {
	fs := filesystem.NewMemoryFS()
	require.NoError(t, fs.MkdirAll("/data", 0755))
	require.NoError(t, fs.WriteFile("/data/state.bin", []byte("garbage"), 0644))

	_, err := Load(fs, "/data/state.bin")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrStateCorrupt))
}

func TestLoad_OtherVersion(t *testing.T) {
	fs := filesystem.NewMemoryFS()
	state := New(snapshot.Empty[types.NodeSource](), snapshot.Empty[string](), "", "")
	state.Version = FormatVersion + 1
	require.NoError(t, Save(fs, "/data/state.bin", state))

	_, err := Load(fs, "/data/state.bin")
	assert.True(t, errors.IsErrorCode(err, errors.ErrStateCorrupt))
}

func TestDigests(t *testing.T) {
	assert.Equal(t, FlagsDigest([]string{"-g", "-O"}), FlagsDigest([]string{"-g", "-O"}))
	assert.NotEqual(t, FlagsDigest([]string{"-g", "-O"}), FlagsDigest([]string{"-O", "-g"}), "order matters")
	assert.NotEqual(t, FlagsDigest([]string{"ab"}), FlagsDigest([]string{"a", "b"}), "boundaries matter")
	assert.NotEqual(t, ClasspathDigest(nil), ClasspathDigest([]string{""}))
}
