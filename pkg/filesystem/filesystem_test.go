// pkg/filesystem/filesystem_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: Real filesystem (temp dir) and afero MemMapFs
// PURPOSE: Verify both FS implementations behave the same for the operations storage relies on

package filesystem

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/incr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseFS(t *testing.T, fsys types.FS, root string) {
	t.Helper()

	dir := filepath.Join(root, "sub", "dir")
	require.NoError(t, fsys.MkdirAll(dir, 0755))

	file := filepath.Join(dir, "a.txt")
	require.NoError(t, fsys.WriteFile(file, []byte("hello"), 0644))

	info, err := fsys.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	content, err := fsys.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	r, err := fsys.Open(file)
	require.NoError(t, err)
	streamed, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "hello", string(streamed))

	created := filepath.Join(dir, "b.txt")
	w, err := fsys.Create(created)
	require.NoError(t, err)
	_, err = w.Write([]byte("world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = fsys.Create(created)
	assert.Error(t, err, "Create must not clobber an existing file")

	renamed := filepath.Join(dir, "c.txt")
	require.NoError(t, fsys.Rename(created, renamed))
	_, err = fsys.Stat(created)
	assert.True(t, os.IsNotExist(err))

	entries, err := fsys.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, fsys.Remove(file))
	require.NoError(t, fsys.RemoveAll(filepath.Join(root, "sub")))
	_, err = fsys.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestOSFS(t *testing.T) {
	root := t.TempDir()
	fsys := NewOS()
	exerciseFS(t, fsys, root)

	src := filepath.Join(root, "orig")
	require.NoError(t, fsys.WriteFile(src, []byte("x"), 0644))
	require.NoError(t, fsys.Link(src, filepath.Join(root, "linked")))
	content, err := fsys.ReadFile(filepath.Join(root, "linked"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(content))
}

func TestAferoFS(t *testing.T) {
	fsys := NewMemoryFS()
	exerciseFS(t, fsys, "/work")

	require.NoError(t, fsys.WriteFile("/work/orig", []byte("x"), 0644))
	err := fsys.Link("/work/orig", "/work/linked")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupported))
}
