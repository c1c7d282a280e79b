// pkg/storage/scratch_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: bolt database in a temp dir
// PURPOSE: Verify the scratch store is usable and leaves nothing behind

package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratchStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scratch.db")
	require.NoError(t, os.WriteFile(path, []byte("left over"), 0600))

	s, err := OpenScratch(path)
	require.NoError(t, err)

	require.NoError(t, s.Put("out/A.class", []byte("a")))
	require.NoError(t, s.Put("out/B.class", []byte("b")))
	require.NoError(t, s.Put("other", []byte("o")))

	data, ok, err := s.Get("out/A.class")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", string(data))

	keys, err := s.Keys("out/")
	require.NoError(t, err)
	assert.Equal(t, []string{"out/A.class", "out/B.class"}, keys)

	require.NoError(t, s.DeletePrefix("out/"))
	keys, err = s.Keys("out/")
	require.NoError(t, err)
	assert.Empty(t, keys)
	_, ok, err = s.Get("other")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Close())
	assert.NoFileExists(t, path)
}
