package storage

import (
	"os"
	"strings"
	"time"

	"github.com/arthur-debert/incr/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var bucketScratch = []byte("scratch")

// ScratchStore is a disk-backed key-value store for transient buffers. It
// never survives its Close.
type ScratchStore struct {
	db   *bolt.DB
	path string
}

// OpenScratch creates a fresh scratch store at path, dropping whatever a
// previous, interrupted build left there
func OpenScratch(path string) (*ScratchStore, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to reset scratch store %s", path)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second, NoSync: true})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to open scratch store %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketScratch)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to initialise scratch store %s", path)
	}
	return &ScratchStore{db: db, path: path}, nil
}

// Put stores data under key
func (s *ScratchStore) Put(key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketScratch).Put([]byte(key), data)
	})
}

// Get returns a copy of the data stored under key
func (s *ScratchStore) Get(key string) ([]byte, bool, error) {
	var out []byte
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketScratch).Get([]byte(key))
		if v != nil {
			found = true
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, found, err
}

// Keys returns the keys starting with prefix, in order
func (s *ScratchStore) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketScratch).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// DeletePrefix removes every key starting with prefix
func (s *ScratchStore) DeletePrefix(prefix string) error {
	keys, err := s.Keys(prefix)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketScratch)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the store and removes its file
func (s *ScratchStore) Close() error {
	closeErr := s.db.Close()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to remove scratch store %s", s.path)
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, errors.ErrFileAccess, "failed to close scratch store %s", s.path)
	}
	return nil
}
