package builder

import (
	"path/filepath"
	"strings"

	"github.com/arthur-debert/incr/pkg/buildstate"
	"github.com/arthur-debert/incr/pkg/depgraph"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/libgraph"
	"github.com/arthur-debert/incr/pkg/metrics"
	"github.com/arthur-debert/incr/pkg/snapshot"
	"github.com/arthur-debert/incr/pkg/types"
)

// initialDelta decides between an incremental and a full build and returns
// the first round's delta
func (r *buildRun) initialDelta() *snapshot.SourceDelta {
	present := r.bc.sources()
	delta, reason := r.decide(present)
	if reason != "" {
		r.logger.Info().Str("reason", reason).Int("sources", present.Len()).Msg("Recompiling target")
		r.b.metrics.RecompileAll.WithLabelValues(reason).Inc()
		if delta == nil {
			delta = snapshot.NewBaseDelta(present)
		}
		delta.MarkRecompileAll()
		return delta
	}
	r.logger.Info().
		Int("modified", len(delta.Modified())).
		Int("deleted", len(delta.Deleted())).
		Msg("Incremental build")
	return delta
}

// decide returns the delta computed so far and, when the target has to be
// recompiled entirely, the reason
func (r *buildRun) decide(present *snapshot.Snapshot[types.NodeSource]) (*snapshot.SourceDelta, string) {
	if r.bc.Rebuild {
		return nil, metrics.ReasonRebuild
	}
	if !r.store.HasPriorOutput() {
		return nil, metrics.ReasonNoOutput
	}

	state, err := buildstate.Load(r.b.fs, r.paths.StateFile())
	if err != nil {
		r.logger.Warn().Err(err).Msg("Discarding build state")
		r.sink.Report(diagnostics.Infof(origin, "build state is unreadable, rebuilding %s", r.bc.Target))
		return nil, metrics.ReasonCorruptState
	}
	if state == nil {
		return nil, metrics.ReasonNoState
	}
	r.pastLibraries = state.LibrarySnapshot()

	delta := snapshot.NewSourceDelta(present, state.SourceSnapshot())
	if state.FlagsDigest != r.flagsDigest {
		return delta, metrics.ReasonFlags
	}
	if state.ClasspathDigest != r.classpathDigest {
		return delta, metrics.ReasonClasspath
	}
	if ratio := delta.ChangedRatio(); ratio > r.b.cfg.Build.RecompileThreshold {
		r.logger.Debug().Float64("ratio", ratio).Float64("threshold", r.b.cfg.Build.RecompileThreshold).Msg("Change ratio over threshold")
		return delta, metrics.ReasonThreshold
	}

	if reason, err := r.expandFromLibraries(delta); err != nil {
		return delta, r.graphFailure(err)
	} else if reason != "" {
		return delta, reason
	}
	if delta.IsRecompileAll() {
		return delta, metrics.ReasonNonIncremental
	}

	if err := r.expandFromSources(delta); err != nil {
		return delta, r.graphFailure(err)
	}
	if delta.IsRecompileAll() {
		return delta, metrics.ReasonNonIncremental
	}
	return delta, ""
}

func (r *buildRun) graphFailure(err error) string {
	r.logger.Warn().Err(err).Msg("Dependency graph unusable")
	r.sink.Report(diagnostics.Infof(origin, "dependency graph is unusable, rebuilding %s", r.bc.Target))
	return metrics.ReasonGraph
}

// tracked keeps the libraries whose file name carries an ABI suffix
func (r *buildRun) tracked(libs *snapshot.Snapshot[string]) *snapshot.Snapshot[string] {
	var order []string
	digests := make(map[string]types.Digest)
	for _, lib := range libs.Elements() {
		if !r.isTracked(lib) {
			continue
		}
		order = append(order, lib)
		digests[lib], _ = libs.Digest(lib)
	}
	return snapshot.FromMap(order, digests)
}

func (r *buildRun) isTracked(lib string) bool {
	base := filepath.Base(lib)
	for _, suffix := range r.b.cfg.Build.ABISuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// libraryChange is the aggregated source-level picture of changed libraries
type libraryChange struct {
	modified  []types.NodeSource
	deleted   []types.NodeSource
	nodes     []depgraph.Node
	pastNodes []depgraph.Node
	parts     []*depgraph.Subgraph
}

// expandFromLibraries widens delta with the sources affected by changes
// inside tracked libraries. A library that can't be loaded stops the
// diffing and makes the target recompile.
func (r *buildRun) expandFromLibraries(delta *snapshot.SourceDelta) (string, error) {
	past := r.tracked(r.pastLibraries)
	present := r.tracked(r.bc.libraries())
	libDelta := snapshot.Diff(past, present)
	if !libDelta.HasChanges() {
		return "", nil
	}
	r.logger.Info().
		Strs("modified", libDelta.Modified).
		Strs("deleted", libDelta.Deleted).
		Msg("Tracked libraries changed")

	var change libraryChange
	for _, lib := range libDelta.Modified {
		digest, _ := present.Digest(lib)
		now, err := r.b.loader.Load(filepath.Base(lib), lib, digest)
		if err != nil {
			return r.libraryFailure(lib, err), nil
		}
		var before *depgraph.Subgraph
		if pastDigest, ok := past.Digest(lib); ok {
			before, err = r.b.loader.Load(filepath.Base(lib), r.store.Backup().PathFor(lib), pastDigest)
			if err != nil {
				return r.libraryFailure(lib, err), nil
			}
		}
		modified, deleted := libgraph.DiffSubgraphs(before, now)
		change.modified = append(change.modified, modified...)
		change.deleted = append(change.deleted, deleted...)
		change.nodes = append(change.nodes, now.NodesOf(modified)...)
		change.pastNodes = append(change.pastNodes, before.NodesOf(modified)...)
		change.pastNodes = append(change.pastNodes, before.NodesOf(deleted)...)
		change.parts = append(change.parts, now)
	}
	for _, lib := range libDelta.Deleted {
		pastDigest, _ := past.Digest(lib)
		before, err := r.b.loader.Load(filepath.Base(lib), r.store.Backup().PathFor(lib), pastDigest)
		if err != nil {
			return r.libraryFailure(lib, err), nil
		}
		order, _ := before.SourceDigests()
		change.deleted = append(change.deleted, order...)
		change.pastNodes = append(change.pastNodes, before.Nodes...)
	}

	if len(change.modified) == 0 && len(change.deleted) == 0 {
		return "", nil
	}

	updater, err := r.graphUpdater()
	if err != nil {
		return "", err
	}
	g, err := r.store.Graph()
	if err != nil {
		return "", err
	}
	gd := g.CreateDelta(change.modified, change.deleted, false).
		AddPastNodes(change.pastNodes...).
		AddNodes(change.nodes...)
	_, err = updater.UpdateBeforeCompilation(delta, gd, change.parts)
	return "", err
}

func (r *buildRun) libraryFailure(lib string, err error) string {
	r.logger.Warn().Err(err).Str("library", lib).Msg("Cannot load library graph")
	r.sink.Report(diagnostics.Warningf(origin, "cannot load dependency graph of %s, rebuilding %s: %v", lib, r.bc.Target, err))
	return metrics.ReasonLibraryLoad
}

// expandFromSources catches structural effects of the source changes, such
// as deleted nodes, before any compiler runs
func (r *buildRun) expandFromSources(delta *snapshot.SourceDelta) error {
	if !delta.HasChanges() {
		return nil
	}
	updater, err := r.graphUpdater()
	if err != nil {
		return err
	}
	g, err := r.store.Graph()
	if err != nil {
		return err
	}
	_, err = updater.UpdateBeforeCompilation(delta, g.CreateDelta(delta.Modified(), delta.Deleted(), true), nil)
	return err
}
