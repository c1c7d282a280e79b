package builder

import (
	"context"
	"runtime/debug"
	"sort"
	"time"

	"github.com/arthur-debert/incr/pkg/buildstate"
	"github.com/arthur-debert/incr/pkg/compiler"
	"github.com/arthur-debert/incr/pkg/config"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/filesystem"
	"github.com/arthur-debert/incr/pkg/graphupdater"
	"github.com/arthur-debert/incr/pkg/libgraph"
	"github.com/arthur-debert/incr/pkg/logging"
	"github.com/arthur-debert/incr/pkg/metrics"
	"github.com/arthur-debert/incr/pkg/paths"
	"github.com/arthur-debert/incr/pkg/snapshot"
	"github.com/arthur-debert/incr/pkg/storage"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/rs/zerolog"
)

const origin = "incr"

// Options configures a Builder
type Options struct {
	Config   *config.Config
	Registry *compiler.Registry
	// FS defaults to the OS filesystem
	FS types.FS
	// LibLoader defaults to a loader sized from the config
	LibLoader *libgraph.Loader
	// Metrics defaults to unregistered collectors
	Metrics *metrics.Metrics
	// CyclePolicy overrides the policy selected by the config
	CyclePolicy graphupdater.CyclePolicy
}

// Builder runs builds. It holds no per-build state and may run several
// builds of different targets one after the other.
type Builder struct {
	cfg      *config.Config
	registry *compiler.Registry
	fs       types.FS
	loader   *libgraph.Loader
	metrics  *metrics.Metrics
	policy   graphupdater.CyclePolicy
}

// New creates a builder
func New(opts Options) *Builder {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Get()
	}
	registry := opts.Registry
	if registry == nil {
		registry = compiler.NewRegistry()
	}
	fs := opts.FS
	if fs == nil {
		fs = filesystem.NewOS()
	}
	loader := opts.LibLoader
	if loader == nil {
		loader = libgraph.NewLoader(cfg.Cache.LibraryGraphs)
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New(nil)
	}
	policy := opts.CyclePolicy
	if policy == nil {
		if cfg.Build.CycleDetection {
			policy = graphupdater.SubsetCyclePolicy{}
		} else {
			policy = graphupdater.DisabledCyclePolicy{}
		}
	}
	return &Builder{cfg: cfg, registry: registry, fs: fs, loader: loader, metrics: m, policy: policy}
}

// compilerStats accumulates per-compiler work over a build
type compilerStats struct {
	sources int
	elapsed time.Duration
}

// buildRun is the state of one build
type buildRun struct {
	b      *Builder
	ctx    context.Context
	bc     *BuildContext
	sink   diagnostics.Sink
	logger zerolog.Logger
	paths  *paths.Paths
	store  *storage.Manager

	flagsDigest     types.Digest
	classpathDigest types.Digest
	pastLibraries   *snapshot.Snapshot[string]
	updater         *graphupdater.Updater

	// delta is the latest round state, persisted at the end
	delta *snapshot.SourceDelta
	stats map[string]*compilerStats
}

func (b *Builder) newRun(ctx context.Context, bc *BuildContext) (*buildRun, error) {
	p, err := paths.New(bc.DataDir, b.cfg.Layout())
	if err != nil {
		return nil, err
	}
	if bc.OutputPath == "" {
		return nil, errors.New(errors.ErrInvalidInput, "output path is required")
	}
	sink := bc.sink()
	r := &buildRun{
		b:               b,
		ctx:             ctx,
		bc:              bc,
		sink:            sink,
		logger:          bc.logger(),
		paths:           p,
		flagsDigest:     buildstate.FlagsDigest(bc.Args),
		classpathDigest: buildstate.ClasspathDigest(bc.libraries().Elements()),
		pastLibraries:   snapshot.Empty[string](),
		stats:           make(map[string]*compilerStats),
	}
	r.store = storage.NewManager(storage.Options{
		FS:               b.fs,
		Paths:            p,
		OutputPath:       bc.OutputPath,
		ABIOutputPath:    bc.ABIOutputPath,
		Classpath:        bc.libraries().Elements(),
		PlatformArchives: b.cfg.Storage.PlatformArchives,
		Sink:             sink,
	})
	return r, nil
}

// Build builds the target described by bc
func (b *Builder) Build(ctx context.Context, bc *BuildContext) compiler.ExitCode {
	start := time.Now()
	r, err := b.newRun(ctx, bc)
	if err != nil {
		bc.sink().Report(diagnostics.Errorf(origin, "invalid build context: %v", err))
		b.metrics.Builds.WithLabelValues(compiler.Error.String()).Inc()
		return compiler.Error
	}
	done := logging.LogOperationStart(r.logger, "build")
	defer done()

	code := r.safeRun()
	if err := r.persist(code); err != nil {
		r.logger.Error().Err(err).Msg("Failed to save build state")
		r.sink.Report(diagnostics.Errorf(origin, "cannot save build state: %v", err))
		_ = r.store.DeleteFile(r.paths.StateFile())
		if code == compiler.OK {
			code = compiler.Error
		}
	}
	if err := r.store.Close(true); err != nil && code == compiler.OK {
		code = compiler.Error
	}
	r.logStats()

	b.metrics.Builds.WithLabelValues(code.String()).Inc()
	b.metrics.BuildDuration.Observe(time.Since(start).Seconds())
	r.logger.Info().Str("result", code.String()).Dur("elapsed", time.Since(start)).Msg("Build finished")
	return code
}

// safeRun runs the build and turns a panic into an error diagnostic
func (r *buildRun) safeRun() (code compiler.ExitCode) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Interface("panic", p).Str("stack", string(debug.Stack())).Msg("Build panicked")
			r.sink.Report(diagnostics.Errorf(origin, "internal error: %v", p))
			code = compiler.Error
		}
	}()

	delta := r.initialDelta()
	r.delta = delta
	if r.ctx.Err() != nil {
		return compiler.Cancel
	}

	state := roundState{number: 1, delta: delta, code: compiler.OK}
	for !state.done && state.delta.HasChanges() {
		state = r.advance(state)
		r.delta = state.delta
	}
	return state.code
}

// persist writes the configuration state for the next build and, after a
// successful build, schedules the library backup
func (r *buildRun) persist(code compiler.ExitCode) error {
	if r.delta == nil {
		return nil
	}
	present := r.bc.libraries()

	sources := r.delta.AsSnapshot()
	libraries := present
	if code != compiler.OK {
		// Deleted sources whose removal wasn't recorded in the graph stay
		// in the baseline so the next build sees them deleted again.
		order := append([]types.NodeSource(nil), sources.Elements()...)
		digests := sources.Digests()
		for _, src := range r.delta.Deleted() {
			order = append(order, src)
			digests[src] = ""
		}
		sources = snapshot.FromMap(order, digests)
		libraries = r.pastLibraries
	}

	state := buildstate.New(sources, libraries, r.flagsDigest, r.classpathDigest)
	if err := buildstate.Save(r.b.fs, r.paths.StateFile(), state); err != nil {
		return err
	}

	if code == compiler.OK {
		var deleted []string
		for _, lib := range r.pastLibraries.Elements() {
			if !present.Contains(lib) {
				deleted = append(deleted, lib)
			}
		}
		r.store.ScheduleBackup(present.Elements(), deleted)
	}
	return nil
}

func (r *buildRun) graphUpdater() (*graphupdater.Updater, error) {
	if r.updater != nil {
		return r.updater, nil
	}
	g, err := r.store.Graph()
	if err != nil {
		return nil, err
	}
	r.updater = graphupdater.New(g, graphupdater.Options{
		CyclePolicy:                   r.b.policy,
		ModuleDescriptor:              r.b.cfg.Build.ModuleDescriptor,
		ProcessConstantsIncrementally: r.b.cfg.Build.ProcessConstantsIncrementally,
	})
	return r.updater, nil
}

func (r *buildRun) stat(name string) *compilerStats {
	s, ok := r.stats[name]
	if !ok {
		s = &compilerStats{}
		r.stats[name] = s
	}
	return s
}

func (r *buildRun) logStats() {
	names := make([]string, 0, len(r.stats))
	for name := range r.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := r.stats[name]
		r.logger.Info().
			Str("compiler", name).
			Int("sources", s.sources).
			Dur("elapsed", s.elapsed).
			Msgf("%s processed %d sources", name, s.sources)
	}
}
