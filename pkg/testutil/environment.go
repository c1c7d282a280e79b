// pkg/testutil/environment.go
// DEPENDENCIES: None (base test utilities)
// PURPOSE: Lay out a build target in a temp directory

package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/arthur-debert/incr/pkg/filesystem"
	"github.com/arthur-debert/incr/pkg/snapshot"
	"github.com/arthur-debert/incr/pkg/types"
)

// TestEnvironment is one target on the real filesystem
type TestEnvironment struct {
	Root          string
	BaseDir       string
	DataDir       string
	LibDir        string
	OutputPath    string
	ABIOutputPath string

	FS types.FS

	t *testing.T
}

// NewTestEnvironment creates the target directories under t.TempDir()
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	root := t.TempDir()
	env := &TestEnvironment{
		Root:          root,
		BaseDir:       filepath.Join(root, "src"),
		DataDir:       filepath.Join(root, "data"),
		LibDir:        filepath.Join(root, "lib"),
		OutputPath:    filepath.Join(root, "out", "target.jar"),
		ABIOutputPath: filepath.Join(root, "out", "target-abi.jar"),
		FS:            filesystem.NewOS(),
		t:             t,
	}
	for _, dir := range []string{env.BaseDir, env.LibDir, filepath.Dir(env.OutputPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	return env
}

// WriteSources writes files relative to BaseDir (path -> content)
func (env *TestEnvironment) WriteSources(files map[string]string) {
	env.t.Helper()
	for rel, content := range files {
		path := filepath.Join(env.BaseDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			env.t.Fatalf("Failed to create directory for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			env.t.Fatalf("Failed to write source %s: %v", rel, err)
		}
	}
}

// RemoveSource deletes a source file
func (env *TestEnvironment) RemoveSource(rel string) {
	env.t.Helper()
	if err := os.Remove(filepath.Join(env.BaseDir, filepath.FromSlash(rel))); err != nil {
		env.t.Fatalf("Failed to remove source %s: %v", rel, err)
	}
}

// Sources snapshots every file under BaseDir, digested by content
func (env *TestEnvironment) Sources() *snapshot.Snapshot[types.NodeSource] {
	env.t.Helper()

	var rels []string
	err := filepath.Walk(env.BaseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(env.BaseDir, path)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		env.t.Fatalf("Failed to scan sources: %v", err)
	}
	sort.Strings(rels)

	order := make([]types.NodeSource, 0, len(rels))
	digests := make(map[types.NodeSource]types.Digest, len(rels))
	for _, rel := range rels {
		data, err := os.ReadFile(filepath.Join(env.BaseDir, filepath.FromSlash(rel)))
		if err != nil {
			env.t.Fatalf("Failed to read source %s: %v", rel, err)
		}
		src := types.NodeSource(rel)
		order = append(order, src)
		digests[src] = snapshot.DigestBytes(data)
	}
	return snapshot.FromMap(order, digests)
}

// WriteLibrary writes an archive named name into LibDir and returns its path.
// An existing library is replaced by rename, the way build tools publish
// artifacts, so hard-linked backups keep the previous content.
func (env *TestEnvironment) WriteLibrary(name string, entries map[string]string) string {
	env.t.Helper()
	path := filepath.Join(env.LibDir, name)
	tmp := path + ".tmp"
	WriteArchive(env.t, tmp, entries)
	if err := os.Rename(tmp, path); err != nil {
		env.t.Fatalf("Failed to publish library %s: %v", name, err)
	}
	return path
}

// Libraries snapshots library archives in the given order, digested by
// content
func (env *TestEnvironment) Libraries(paths ...string) *snapshot.Snapshot[string] {
	env.t.Helper()
	digests := make(map[string]types.Digest, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			env.t.Fatalf("Failed to read library %s: %v", path, err)
		}
		digests[path] = snapshot.DigestBytes(data)
	}
	return snapshot.FromMap(paths, digests)
}

// Output returns the entries of the primary output archive, nil when it
// doesn't exist
func (env *TestEnvironment) Output() map[string]string {
	env.t.Helper()
	if _, err := os.Stat(env.OutputPath); err != nil {
		return nil
	}
	return ReadArchive(env.t, env.OutputPath)
}
