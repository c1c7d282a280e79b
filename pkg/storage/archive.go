package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/logging"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
)

// ArchiveBuilder edits one output archive. The archive is read on first
// access from its live path, or from seed when the live file doesn't exist,
// and written back on Close.
type ArchiveBuilder struct {
	fs      types.FS
	path    string
	seed    string
	entries map[string][]byte
	loaded  bool
	dirty   bool
	logger  zerolog.Logger
}

// NewArchiveBuilder creates a builder for the archive at path. seed may be
// empty.
func NewArchiveBuilder(fs types.FS, path, seed string) *ArchiveBuilder {
	return &ArchiveBuilder{
		fs:     fs,
		path:   path,
		seed:   seed,
		logger: logging.GetLogger("storage.archive").With().Str("archive", filepath.Base(path)).Logger(),
	}
}

// Path returns the live archive path
func (a *ArchiveBuilder) Path() string {
	return a.path
}

func (a *ArchiveBuilder) load() error {
	if a.loaded {
		return nil
	}
	a.entries = make(map[string][]byte)
	a.loaded = true

	for _, candidate := range []string{a.path, a.seed} {
		if candidate == "" {
			continue
		}
		data, err := a.fs.ReadFile(candidate)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, errors.ErrArchiveRead, "failed to read archive %s", candidate)
		}
		if err := a.readEntries(data); err != nil {
			return errors.Wrapf(err, errors.ErrArchiveRead, "failed to read archive %s", candidate)
		}
		// Seeding from the backup means the live file has to be written.
		a.dirty = candidate != a.path
		a.logger.Debug().Str("from", candidate).Int("entries", len(a.entries)).Msg("Archive loaded")
		return nil
	}
	return nil
}

func (a *ArchiveBuilder) readEntries(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return err
		}
		a.entries[f.Name] = content
	}
	return nil
}

// Put adds or replaces an entry
func (a *ArchiveBuilder) Put(name string, data []byte) error {
	if err := a.load(); err != nil {
		return err
	}
	a.entries[name] = data
	a.dirty = true
	return nil
}

// Remove deletes an entry and reports whether it existed
func (a *ArchiveBuilder) Remove(name string) (bool, error) {
	if err := a.load(); err != nil {
		return false, err
	}
	if _, ok := a.entries[name]; !ok {
		return false, nil
	}
	delete(a.entries, name)
	a.dirty = true
	return true, nil
}

// Get returns an entry
func (a *ArchiveBuilder) Get(name string) ([]byte, bool, error) {
	if err := a.load(); err != nil {
		return nil, false, err
	}
	data, ok := a.entries[name]
	return data, ok, nil
}

// Names returns the entry names in order
func (a *ArchiveBuilder) Names() ([]string, error) {
	if err := a.load(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(a.entries))
	for name := range a.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Reset drops every entry without consulting the live archive or the seed
func (a *ArchiveBuilder) Reset() {
	a.entries = make(map[string][]byte)
	a.loaded = true
	a.dirty = true
}

// Close writes the archive when save is set and something changed. Entries
// are written in name order, through a temporary file renamed into place.
func (a *ArchiveBuilder) Close(save bool) error {
	defer func() {
		a.entries = nil
		a.loaded = false
		a.dirty = false
	}()
	if !save || !a.dirty {
		return nil
	}

	names, err := a.Names()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return errors.Wrapf(err, errors.ErrArchiveWrite, "failed to add %s to %s", name, a.path)
		}
		if _, err := w.Write(a.entries[name]); err != nil {
			return errors.Wrapf(err, errors.ErrArchiveWrite, "failed to write %s to %s", name, a.path)
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrapf(err, errors.ErrArchiveWrite, "failed to finish %s", a.path)
	}

	if err := a.fs.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create output dir for %s", a.path)
	}
	tmp := a.path + ".tmp-" + uuid.NewString()
	if err := a.fs.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrArchiveWrite, "failed to write %s", tmp)
	}
	if err := a.fs.Rename(tmp, a.path); err != nil {
		_ = a.fs.Remove(tmp)
		return errors.Wrapf(err, errors.ErrArchiveWrite, "failed to replace %s", a.path)
	}
	a.logger.Debug().Int("entries", len(names)).Msg("Archive written")
	return nil
}

// Outputs presents the primary and ABI archives as one output surface.
// Class outputs go to the primary archive; ABI entries only to the ABI
// archive when one is configured. Removal applies to both.
type Outputs struct {
	primary *ArchiveBuilder
	abi     *ArchiveBuilder
}

// NewOutputs combines primary with an optional abi builder
func NewOutputs(primary, abi *ArchiveBuilder) *Outputs {
	return &Outputs{primary: primary, abi: abi}
}

// Put writes an entry to the primary archive
func (o *Outputs) Put(name string, data []byte) error {
	return o.primary.Put(name, data)
}

// PutABI writes an entry to the ABI archive. Without one it is a no-op.
func (o *Outputs) PutABI(name string, data []byte) error {
	if o.abi == nil {
		return nil
	}
	return o.abi.Put(name, data)
}

// Remove deletes name from every archive and reports whether any held it
func (o *Outputs) Remove(name string) (bool, error) {
	removed, err := o.primary.Remove(name)
	if err != nil || o.abi == nil {
		return removed, err
	}
	abiRemoved, err := o.abi.Remove(name)
	return removed || abiRemoved, err
}

// Get looks name up in the primary archive, then in the ABI archive
func (o *Outputs) Get(name string) ([]byte, bool, error) {
	data, ok, err := o.primary.Get(name)
	if err != nil || ok || o.abi == nil {
		return data, ok, err
	}
	return o.abi.Get(name)
}
