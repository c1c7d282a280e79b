// pkg/storage/trash_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: temp dir
// PURPOSE: Verify trash-on-delete and purge

package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/arthur-debert/incr/pkg/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrash_DeleteRemovesDirectly(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "state.bin")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tr := NewTrash(filesystem.NewOS(), filepath.Join(root, "trash"))
	require.NoError(t, tr.Delete(file))

	assert.NoFileExists(t, file)
	assert.NoDirExists(t, tr.Dir(), "nothing needed trashing")
	assert.NoError(t, tr.Delete(file), "missing file is already deleted")
}

func TestTrash_DeleteMovesWhenRemoveFails(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directory semantics differ")
	}
	root := t.TempDir()
	// a non-empty directory can't be removed with a plain remove
	dir := filepath.Join(root, "graph.db")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page"), []byte("x"), 0644))

	tr := NewTrash(filesystem.NewOS(), filepath.Join(root, "trash"))
	require.NoError(t, tr.Delete(dir))

	assert.NoDirExists(t, dir, "gone from its logical location")
	entries, err := os.ReadDir(tr.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, tr.Purge())
	assert.NoDirExists(t, tr.Dir())
	require.NoError(t, tr.Purge(), "purging twice is fine")
}

func TestTrash_DeleteInsideTrashFails(t *testing.T) {
	root := t.TempDir()
	tr := NewTrash(filesystem.NewOS(), filepath.Join(root, "trash"))
	inside := filepath.Join(tr.Dir(), "stuck")
	require.NoError(t, os.MkdirAll(inside, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(inside, "f"), []byte("x"), 0644))

	assert.Error(t, tr.Delete(inside))
	assert.DirExists(t, inside)
}
