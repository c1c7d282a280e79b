package types

import (
	"io"
	"io/fs"
)

// FS is the filesystem interface required for incr's persistent operations
type FS interface {
	// File operations
	Stat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	Open(name string) (io.ReadCloser, error)
	Create(name string) (io.WriteCloser, error)

	// Directory operations
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)

	// Link creates a hard link. Implementations without hard link support
	// return an error and callers fall back to copying.
	Link(oldname, newname string) error

	// Other operations
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
}

// Pather provides the on-disk layout of one target's build data
type Pather interface {
	// DataDir returns the build's data directory
	DataDir() string

	// StateFile returns the configuration-state file path
	StateFile() string

	// GraphFile returns the dependency-graph store path
	GraphFile() string

	// BackupDir returns the content-addressed library backup directory
	BackupDir() string

	// TrashDir returns the trash directory
	TrashDir() string

	// ScratchFile returns the scratch store path
	ScratchFile() string
}
