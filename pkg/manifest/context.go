package manifest

import (
	"path/filepath"
	"sort"

	"github.com/arthur-debert/incr/pkg/builder"
	"github.com/arthur-debert/incr/pkg/compiler"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/snapshot"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/rs/zerolog"
)

// Registry creates the target's runners, in declaration order
func (m *Manifest) Registry(fs types.FS) *compiler.Registry {
	registry := compiler.NewRegistry()
	for _, c := range m.Compilers {
		switch c.Kind {
		case KindExec:
			registry.Register(compiler.NewExecRunner(compiler.ExecOptions{
				Name:         c.Name,
				Target:       m.Target,
				BaseDir:      m.BaseDir,
				Extensions:   c.Extensions,
				Command:      c.Command,
				Args:         m.Args,
				StaleOutputs: c.StaleOutputs,
			}))
		case KindResource:
			registry.Register(compiler.NewResourceRunner(compiler.ResourceOptions{
				Name:        c.Name,
				FS:          fs,
				BaseDir:     m.BaseDir,
				Extensions:  c.Extensions,
				StripPrefix: c.StripPrefix,
			}))
		}
	}
	return registry
}

// Context snapshots the target's sources and dependencies. Only files some
// compiler accepts are sources; they are keyed by their slash-separated
// path relative to BaseDir.
func (m *Manifest) Context(fs types.FS, registry *compiler.Registry, sink diagnostics.Sink, logger *zerolog.Logger) (*builder.BuildContext, error) {
	sources, err := m.scanSources(fs, registry)
	if err != nil {
		return nil, err
	}
	libraries, err := m.scanDeps(fs)
	if err != nil {
		return nil, err
	}
	return &builder.BuildContext{
		Target:        m.Target,
		Rebuild:       m.Rebuild,
		BaseDir:       m.BaseDir,
		DataDir:       m.DataDir,
		OutputPath:    m.Output,
		ABIOutputPath: m.ABIOutput,
		Sources:       sources,
		Libraries:     libraries,
		Args:          m.Args,
		Sink:          sink,
		Logger:        logger,
	}, nil
}

func (m *Manifest) scanSources(fs types.FS, registry *compiler.Registry) (*snapshot.Snapshot[types.NodeSource], error) {
	accepted := func(src types.NodeSource) bool {
		for _, r := range registry.Runners() {
			if r.CanCompile(src) {
				return true
			}
		}
		return false
	}

	seen := make(map[types.NodeSource]bool)
	var order []types.NodeSource
	for _, root := range m.Sources {
		dir := filepath.Join(m.BaseDir, filepath.FromSlash(root))
		err := walk(fs, dir, func(path string) error {
			if m.excluded(filepath.Base(path)) {
				return nil
			}
			rel, err := filepath.Rel(m.BaseDir, path)
			if err != nil {
				return err
			}
			src := types.NodeSource(filepath.ToSlash(rel))
			if !seen[src] && accepted(src) {
				seen[src] = true
				order = append(order, src)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to scan sources under %s", dir)
		}
	}
	types.SortSources(order)

	digests := make(map[types.NodeSource]types.Digest, len(order))
	for _, src := range order {
		data, err := fs.ReadFile(filepath.Join(m.BaseDir, filepath.FromSlash(string(src))))
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read source %s", src)
		}
		digests[src] = snapshot.DigestBytes(data)
	}
	return snapshot.FromMap(order, digests), nil
}

func (m *Manifest) scanDeps(fs types.FS) (*snapshot.Snapshot[string], error) {
	digests := make(map[string]types.Digest, len(m.Deps))
	for _, dep := range m.Deps {
		data, err := fs.ReadFile(dep)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read dependency %s", dep)
		}
		digests[dep] = snapshot.DigestBytes(data)
	}
	return snapshot.FromMap(m.Deps, digests), nil
}

func (m *Manifest) excluded(name string) bool {
	for _, pattern := range m.Exclude {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// walk calls fn for every regular file under dir, in name order
func walk(fs types.FS, dir string, fn func(path string) error) error {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	dirs := make(map[string]bool, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
		dirs[e.Name()] = e.IsDir()
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if dirs[name] {
			if err := walk(fs, path, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(path); err != nil {
			return err
		}
	}
	return nil
}
