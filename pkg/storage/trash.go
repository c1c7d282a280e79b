package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/logging"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Trash implements trash-on-delete for build state files
type Trash struct {
	fs     types.FS
	dir    string
	logger zerolog.Logger
}

// NewTrash creates a trash rooted at dir
func NewTrash(fs types.FS, dir string) *Trash {
	return &Trash{fs: fs, dir: dir, logger: logging.GetLogger("storage.trash")}
}

// Dir returns the trash directory
func (t *Trash) Dir() string {
	return t.dir
}

// Delete removes path. When the direct remove fails and the file is still
// there, it is moved into the trash directory under a fresh name.
func (t *Trash) Delete(path string) error {
	err := t.fs.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	if _, statErr := t.fs.Stat(path); os.IsNotExist(statErr) {
		return nil
	}
	if t.contains(path) {
		return errors.Wrapf(err, errors.ErrTrash, "failed to delete %s", path)
	}

	if mkErr := t.fs.MkdirAll(t.dir, 0755); mkErr != nil {
		return errors.Wrapf(mkErr, errors.ErrDirCreate, "failed to create trash dir %s", t.dir)
	}
	dest := filepath.Join(t.dir, uuid.NewString())
	if renameErr := t.fs.Rename(path, dest); renameErr != nil {
		return errors.Wrapf(renameErr, errors.ErrTrash, "failed to move %s to trash", path)
	}
	t.logger.Debug().Str("path", path).Str("trash", dest).Err(err).Msg("Moved to trash")
	return nil
}

// Purge removes the trash directory and everything in it
func (t *Trash) Purge() error {
	if _, err := t.fs.Stat(t.dir); os.IsNotExist(err) {
		return nil
	}
	if err := t.fs.RemoveAll(t.dir); err != nil {
		return errors.Wrapf(err, errors.ErrTrash, "failed to purge trash %s", t.dir)
	}
	t.logger.Debug().Str("dir", t.dir).Msg("Purged trash")
	return nil
}

func (t *Trash) contains(path string) bool {
	rel, err := filepath.Rel(t.dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
