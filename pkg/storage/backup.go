package storage

import (
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/logging"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const copyAttempts = 5

// BackupKey names the backup of the file at absolute path abs: a hash of the
// containing directory joined with the file name, so equally named files
// from different directories don't collide.
func BackupKey(abs string) string {
	dir := filepath.Dir(filepath.Clean(abs))
	return strconv.FormatUint(xxhash.Sum64String(dir), 16) + "-" + filepath.Base(abs)
}

// Backup maintains the content-addressed backup directory
type Backup struct {
	fs     types.FS
	dir    string
	trash  *Trash
	logger zerolog.Logger
}

// NewBackup creates a backup rooted at dir. Backups that can't be removed
// are handed to trash.
func NewBackup(fs types.FS, dir string, trash *Trash) *Backup {
	return &Backup{fs: fs, dir: dir, trash: trash, logger: logging.GetLogger("storage.backup")}
}

// PathFor returns where the backup of abs lives
func (b *Backup) PathFor(abs string) string {
	return filepath.Join(b.dir, BackupKey(abs))
}

// Exists reports whether abs has a backup
func (b *Backup) Exists(abs string) bool {
	_, err := b.fs.Stat(b.PathFor(abs))
	return err == nil
}

// Store backs abs up, replacing any previous backup. A hard link is tried
// first; when linking fails the file is copied.
func (b *Backup) Store(abs string) error {
	if err := b.fs.MkdirAll(b.dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create backup dir %s", b.dir)
	}
	target := b.PathFor(abs)
	if err := b.drop(target); err != nil {
		return err
	}

	linkErr := b.fs.Link(abs, target)
	if linkErr == nil {
		b.logger.Trace().Str("file", abs).Msg("Linked backup")
		return nil
	}
	b.logger.Debug().Str("file", abs).Err(linkErr).Msg("Link failed, copying")
	return b.copy(abs, target)
}

// Remove drops the backup of abs
func (b *Backup) Remove(abs string) error {
	return b.drop(b.PathFor(abs))
}

// Sync makes the backup directory mirror present: every file of present is
// stored, backups of deleted files and of anything else are dropped. All
// files are attempted; the errors are joined.
func (b *Backup) Sync(present, deleted []string) error {
	var errs []error
	keep := make(map[string]bool, len(present))
	for _, abs := range present {
		keep[BackupKey(abs)] = true
		if err := b.Store(abs); err != nil {
			errs = append(errs, err)
		}
	}
	for _, abs := range deleted {
		if keep[BackupKey(abs)] {
			continue
		}
		if err := b.Remove(abs); err != nil {
			errs = append(errs, err)
		}
	}

	entries, err := b.fs.ReadDir(b.dir)
	if err != nil && !os.IsNotExist(err) {
		errs = append(errs, errors.Wrapf(err, errors.ErrBackup, "failed to list backups in %s", b.dir))
	}
	for _, e := range entries {
		if keep[e.Name()] {
			continue
		}
		if err := b.drop(filepath.Join(b.dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}

	b.logger.Debug().Int("stored", len(present)).Int("errors", len(errs)).Msg("Backups synced")
	return stderrors.Join(errs...)
}

func (b *Backup) drop(path string) error {
	if _, err := b.fs.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := b.trash.Delete(path); err != nil {
		return errors.Wrapf(err, errors.ErrBackup, "failed to drop backup %s", path)
	}
	return nil
}

// copy writes src to target through a temporary file and an atomic rename.
// A temporary name that is already taken is replaced by a fresh one.
func (b *Backup) copy(src, target string) error {
	in, err := b.fs.Open(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrBackup, "failed to open %s", src)
	}
	defer func() { _ = in.Close() }()

	var tmp string
	var out io.WriteCloser
	for attempt := 0; attempt < copyAttempts; attempt++ {
		tmp = target + ".tmp-" + uuid.NewString()
		out, err = b.fs.Create(tmp)
		if err == nil || !os.IsExist(err) {
			break
		}
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrBackup, "failed to create temp file for %s", target)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = b.fs.Remove(tmp)
		return errors.Wrapf(err, errors.ErrBackup, "failed to copy %s", src)
	}
	if err := out.Close(); err != nil {
		_ = b.fs.Remove(tmp)
		return errors.Wrapf(err, errors.ErrBackup, "failed to write %s", tmp)
	}
	if err := b.fs.Rename(tmp, target); err != nil {
		_ = b.fs.Remove(tmp)
		return errors.Wrapf(err, errors.ErrBackup, "failed to move backup into place %s", target)
	}
	b.logger.Trace().Str("file", src).Msg("Copied backup")
	return nil
}
