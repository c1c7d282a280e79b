package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/types"
)

// Environment variable names
const (
	// EnvIncrDataDir overrides the root under which per-target data directories live
	EnvIncrDataDir = "INCR_DATA_DIR"

	// EnvIncrConfigDir overrides the XDG config directory for incr
	EnvIncrConfigDir = "INCR_CONFIG_DIR"
)

// IncrDirName is the directory name for incr-specific files under XDG roots
const IncrDirName = "incr"

// Layout names the files inside a data directory. The zero value is not
// usable; start from DefaultLayout.
type Layout struct {
	StateFile   string
	GraphFile   string
	BackupDir   string
	TrashDir    string
	ScratchFile string
}

// DefaultLayout returns the built-in data directory layout
func DefaultLayout() Layout {
	return Layout{
		StateFile:   "config-state.bin",
		GraphFile:   "dep-graph.db",
		BackupDir:   "dep-backup",
		TrashDir:    "trash",
		ScratchFile: "scratch.db",
	}
}

// Paths implements types.Pather for one data directory
type Paths struct {
	dataDir string
	layout  Layout
}

var _ types.Pather = (*Paths)(nil)

// New creates a Paths rooted at dataDir. Empty layout fields fall back to
// DefaultLayout.
func New(dataDir string, layout Layout) (*Paths, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, errors.New(errors.ErrInvalidInput, "data directory is required")
	}
	abs, err := filepath.Abs(expandHome(dataDir))
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to get absolute path for data dir %s", dataDir)
	}

	defaults := DefaultLayout()
	if layout.StateFile == "" {
		layout.StateFile = defaults.StateFile
	}
	if layout.GraphFile == "" {
		layout.GraphFile = defaults.GraphFile
	}
	if layout.BackupDir == "" {
		layout.BackupDir = defaults.BackupDir
	}
	if layout.TrashDir == "" {
		layout.TrashDir = defaults.TrashDir
	}
	if layout.ScratchFile == "" {
		layout.ScratchFile = defaults.ScratchFile
	}

	return &Paths{dataDir: abs, layout: layout}, nil
}

func (p *Paths) DataDir() string     { return p.dataDir }
func (p *Paths) StateFile() string   { return filepath.Join(p.dataDir, p.layout.StateFile) }
func (p *Paths) GraphFile() string   { return filepath.Join(p.dataDir, p.layout.GraphFile) }
func (p *Paths) BackupDir() string   { return filepath.Join(p.dataDir, p.layout.BackupDir) }
func (p *Paths) TrashDir() string    { return filepath.Join(p.dataDir, p.layout.TrashDir) }
func (p *Paths) ScratchFile() string { return filepath.Join(p.dataDir, p.layout.ScratchFile) }

// DefaultDataDir returns the data directory for a target when the manifest
// doesn't name one: $INCR_DATA_DIR/<target> or $XDG_CACHE_HOME/incr/<target>.
func DefaultDataDir(target string) string {
	root := os.Getenv(EnvIncrDataDir)
	if root == "" {
		root = filepath.Join(xdg.CacheHome, IncrDirName)
	}
	return filepath.Join(expandHome(root), SanitizeTarget(target))
}

// ConfigDir returns the user config directory for incr
func ConfigDir() string {
	if dir := os.Getenv(EnvIncrConfigDir); dir != "" {
		return expandHome(dir)
	}
	return filepath.Join(xdg.ConfigHome, IncrDirName)
}

// SanitizeTarget turns a target label such as "//lib/core:core" into a
// single safe directory name.
func SanitizeTarget(target string) string {
	target = strings.TrimLeft(target, "/")
	replacer := strings.NewReplacer("/", "_", ":", "_", "\\", "_", " ", "_")
	name := replacer.Replace(target)
	if name == "" {
		return "default"
	}
	return name
}

// expandHome expands ~ to the user's home directory
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
