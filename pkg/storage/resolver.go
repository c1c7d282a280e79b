package storage

import (
	"io"
	"strings"

	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/klauspost/compress/zip"
)

// ClassResolver finds class files for compiler plugins: classes written
// during this build first, then the classpath, then the platform archives
type ClassResolver struct {
	outputs  *Outputs
	archives []string
	readers  map[string]*zip.ReadCloser
}

// NewClassResolver searches outputs, then each archive in order
func NewClassResolver(outputs *Outputs, classpath, platform []string) *ClassResolver {
	archives := make([]string, 0, len(classpath)+len(platform))
	archives = append(archives, classpath...)
	archives = append(archives, platform...)
	return &ClassResolver{outputs: outputs, archives: archives, readers: make(map[string]*zip.ReadCloser)}
}

// Resolve returns the bytes of class name, given as an internal name
// ("pkg/Name") or an entry name ("pkg/Name.class")
func (r *ClassResolver) Resolve(name string) ([]byte, bool, error) {
	entry := name
	if !strings.HasSuffix(entry, ".class") {
		entry += ".class"
	}

	if r.outputs != nil {
		data, ok, err := r.outputs.Get(entry)
		if err != nil || ok {
			return data, ok, err
		}
	}

	for _, path := range r.archives {
		zr, err := r.reader(path)
		if err != nil {
			// An unreadable classpath entry just doesn't provide classes.
			continue
		}
		for _, f := range zr.File {
			if f.Name != entry {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return nil, false, errors.Wrapf(err, errors.ErrArchiveRead, "failed to open %s in %s", entry, path)
			}
			data, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				return nil, false, errors.Wrapf(err, errors.ErrArchiveRead, "failed to read %s in %s", entry, path)
			}
			return data, true, nil
		}
	}
	return nil, false, nil
}

func (r *ClassResolver) reader(path string) (*zip.ReadCloser, error) {
	if zr, ok := r.readers[path]; ok {
		return zr, nil
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	r.readers[path] = zr
	return zr, nil
}

// Close releases the archive readers
func (r *ClassResolver) Close() error {
	var first error
	for path, zr := range r.readers {
		if err := zr.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, errors.ErrArchiveRead, "failed to close %s", path)
		}
	}
	r.readers = make(map[string]*zip.ReadCloser)
	return first
}
