package storage

import (
	stderrors "errors"
	"os"

	"github.com/arthur-debert/incr/pkg/depgraph"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/logging"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/rs/zerolog"
)

const componentName = "storage"

// Options configures a Manager
type Options struct {
	FS    types.FS
	Paths types.Pather
	// OutputPath is the primary output archive
	OutputPath string
	// ABIOutputPath is optional
	ABIOutputPath string
	// Classpath and PlatformArchives feed the class resolver
	Classpath        []string
	PlatformArchives []string
	// Sink receives close failures
	Sink diagnostics.Sink
}

// Manager owns the persistent resources of one build
type Manager struct {
	opts   Options
	logger zerolog.Logger

	graph    *depgraph.Store
	output   *ArchiveBuilder
	abi      *ArchiveBuilder
	outputs  *Outputs
	scratch  *ScratchStore
	resolver *ClassResolver
	trash    *Trash
	backup   *Backup

	backupPresent []string
	backupDeleted []string
	backupPending bool
	closed        bool
}

// NewManager creates a manager. Nothing is opened until first use.
func NewManager(opts Options) *Manager {
	trash := NewTrash(opts.FS, opts.Paths.TrashDir())
	return &Manager{
		opts:   opts,
		logger: logging.GetLogger(componentName),
		trash:  trash,
		backup: NewBackup(opts.FS, opts.Paths.BackupDir(), trash),
	}
}

// Trash returns the build's trash
func (m *Manager) Trash() *Trash { return m.trash }

// Backup returns the build's backup directory
func (m *Manager) Backup() *Backup { return m.backup }

// Graph opens the dependency graph store on first call
func (m *Manager) Graph() (*depgraph.Store, error) {
	if m.graph != nil {
		return m.graph, nil
	}
	if err := m.ensureDataDir(); err != nil {
		return nil, err
	}
	g, err := depgraph.Open(m.opts.Paths.GraphFile())
	if err != nil {
		return nil, err
	}
	m.graph = g
	return g, nil
}

// Output returns the primary output archive builder, seeded from its backup
func (m *Manager) Output() *ArchiveBuilder {
	if m.output == nil {
		m.output = NewArchiveBuilder(m.opts.FS, m.opts.OutputPath, m.backup.PathFor(m.opts.OutputPath))
	}
	return m.output
}

// ABIOutput returns the ABI archive builder, nil without an ABI output path
func (m *Manager) ABIOutput() *ArchiveBuilder {
	if m.opts.ABIOutputPath == "" {
		return nil
	}
	if m.abi == nil {
		m.abi = NewArchiveBuilder(m.opts.FS, m.opts.ABIOutputPath, m.backup.PathFor(m.opts.ABIOutputPath))
	}
	return m.abi
}

// Outputs returns both archives as one surface
func (m *Manager) Outputs() *Outputs {
	if m.outputs == nil {
		m.outputs = NewOutputs(m.Output(), m.ABIOutput())
	}
	return m.outputs
}

// Scratch opens the scratch store on first call
func (m *Manager) Scratch() (*ScratchStore, error) {
	if m.scratch != nil {
		return m.scratch, nil
	}
	if err := m.ensureDataDir(); err != nil {
		return nil, err
	}
	s, err := OpenScratch(m.opts.Paths.ScratchFile())
	if err != nil {
		return nil, err
	}
	m.scratch = s
	return s, nil
}

// ClassResolver returns the resolver over this build's outputs
func (m *Manager) ClassResolver() *ClassResolver {
	if m.resolver == nil {
		m.resolver = NewClassResolver(m.Outputs(), m.opts.Classpath, m.opts.PlatformArchives)
	}
	return m.resolver
}

// HasPriorOutput reports whether a previous build left an output archive,
// live or as a backup
func (m *Manager) HasPriorOutput() bool {
	if _, err := m.opts.FS.Stat(m.opts.OutputPath); err == nil {
		return true
	}
	return m.backup.Exists(m.opts.OutputPath)
}

// DeleteFile deletes a build state file through the trash
func (m *Manager) DeleteFile(path string) error {
	return m.trash.Delete(path)
}

// PurgeTrash empties the trash left by a previous build
func (m *Manager) PurgeTrash() error {
	return m.trash.Purge()
}

// ClearBuildState forgets everything the previous builds recorded: output
// archives are emptied and the graph store is recreated
func (m *Manager) ClearBuildState() error {
	var errs []error

	if m.graph != nil {
		if err := m.graph.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, errors.ErrGraphWrite, "failed to close dependency graph"))
		}
		m.graph = nil
	}
	if err := m.trash.Delete(m.opts.Paths.GraphFile()); err != nil {
		errs = append(errs, err)
	}

	for _, path := range []string{m.opts.OutputPath, m.opts.ABIOutputPath} {
		if path == "" {
			continue
		}
		if err := m.trash.Delete(path); err != nil {
			errs = append(errs, err)
		}
	}
	m.Output().Reset()
	if abi := m.ABIOutput(); abi != nil {
		abi.Reset()
	}

	m.logger.Info().Msg("Build state cleared")
	return stderrors.Join(errs...)
}

// ScheduleBackup records the binary dependencies to back up on Close. The
// output archives are always added.
func (m *Manager) ScheduleBackup(present, deleted []string) {
	m.backupPresent = append([]string(nil), present...)
	m.backupDeleted = append([]string(nil), deleted...)
	m.backupPending = true
}

// Close releases every resource, saving archive changes when saveChanges is
// set. Each failure is reported to the sink and the remaining resources are
// still closed. The scratch store is always removed. A scheduled backup runs
// last, once the archives are on disk.
func (m *Manager) Close(saveChanges bool) error {
	if m.closed {
		return nil
	}
	m.closed = true
	done := logging.LogOperationStart(m.logger, "storage close")
	defer done()

	var errs []error
	attempt := func(what string, fn func() error) {
		if err := fn(); err != nil {
			m.logger.Error().Err(err).Str("resource", what).Msg("Failed to close")
			m.report(diagnostics.Errorf(componentName, "failed to close %s: %v", what, err))
			errs = append(errs, err)
		}
	}

	if m.resolver != nil {
		attempt("class resolver", m.resolver.Close)
	}
	if m.output != nil {
		attempt("output archive", func() error { return m.output.Close(saveChanges) })
	}
	if m.abi != nil {
		attempt("ABI archive", func() error { return m.abi.Close(saveChanges) })
	}
	if m.graph != nil {
		attempt("dependency graph", m.graph.Close)
	}
	if m.scratch != nil {
		attempt("scratch store", m.scratch.Close)
	}

	if saveChanges && m.backupPending {
		present := append([]string(nil), m.backupPresent...)
		for _, out := range []string{m.opts.OutputPath, m.opts.ABIOutputPath} {
			if out == "" {
				continue
			}
			if _, err := m.opts.FS.Stat(out); err == nil {
				present = append(present, out)
			}
		}
		if err := m.backup.Sync(present, m.backupDeleted); err != nil {
			m.logger.Warn().Err(err).Msg("Backup incomplete")
			m.report(diagnostics.Warningf(componentName, "failed to back up dependencies: %v", err))
		}
	}

	if len(errs) > 0 {
		return errors.Wrap(stderrors.Join(errs...), errors.ErrStorageClose, "failed to close build storage")
	}
	return nil
}

func (m *Manager) report(msg diagnostics.Message) {
	if m.opts.Sink != nil {
		m.opts.Sink.Report(msg)
	}
}

func (m *Manager) ensureDataDir() error {
	dir := m.opts.Paths.DataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create data dir %s", dir)
	}
	return nil
}
