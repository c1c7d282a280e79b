// pkg/testutil/archive.go
// DEPENDENCIES: klauspost/compress/zip
// PURPOSE: Create and inspect zip archives used as libraries and outputs in tests

package testutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

// WriteArchive writes a zip archive at path holding entries (name -> content).
// Entries are written in name order so equal inputs give identical bytes.
func WriteArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create archive dir: %v", err)
	}
	if err := os.WriteFile(path, ArchiveBytes(t, entries), 0644); err != nil {
		t.Fatalf("Failed to write archive %s: %v", path, err)
	}
}

// ArchiveBytes returns the zip encoding of entries
func ArchiveBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			t.Fatalf("Failed to add entry %s: %v", name, err)
		}
		if _, err := io.WriteString(w, entries[name]); err != nil {
			t.Fatalf("Failed to write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to finish archive: %v", err)
	}
	return buf.Bytes()
}

// ReadArchive returns the entries of the archive at path
func ReadArchive(t *testing.T, path string) map[string]string {
	t.Helper()

	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("Failed to open archive %s: %v", path, err)
	}
	defer func() { _ = r.Close() }()

	out := make(map[string]string, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("Failed to read entry %s: %v", f.Name, err)
		}
		out[f.Name] = string(data)
	}
	return out
}
