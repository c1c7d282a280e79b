package graphupdater

import (
	"github.com/arthur-debert/incr/pkg/depgraph"
	"github.com/arthur-debert/incr/pkg/logging"
	"github.com/arthur-debert/incr/pkg/snapshot"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/rs/zerolog"
)

// Options configures an Updater
type Options struct {
	// CyclePolicy defaults to SubsetCyclePolicy
	CyclePolicy CyclePolicy
	// ModuleDescriptor is the file name that forces a full recompile when
	// affected. Empty disables the check.
	ModuleDescriptor string
	// ProcessConstantsIncrementally is passed through to differentiation
	ProcessConstantsIncrementally bool
}

// Updater applies dependency graph effects to the round's delta
type Updater struct {
	graph            depgraph.Graph
	policy           CyclePolicy
	moduleDescriptor string
	constants        bool
	seen             map[types.NodeSource]bool
	logger           zerolog.Logger
}

// New creates an updater for one build
func New(graph depgraph.Graph, opts Options) *Updater {
	policy := opts.CyclePolicy
	if policy == nil {
		policy = SubsetCyclePolicy{}
	}
	return &Updater{
		graph:            graph,
		policy:           policy,
		moduleDescriptor: opts.ModuleDescriptor,
		constants:        opts.ProcessConstantsIncrementally,
		seen:             make(map[types.NodeSource]bool),
		logger:           logging.GetLogger("graphupdater"),
	}
}

// Seen returns the affected sources recorded so far in this build
func (u *Updater) Seen() []types.NodeSource {
	out := make([]types.NodeSource, 0, len(u.seen))
	for src := range u.seen {
		out = append(out, src)
	}
	return types.SortSources(out)
}

// UpdateBeforeCompilation widens current with the sources incoming affects.
// current is mutated and returned; the graph is not changed.
func (u *Updater) UpdateBeforeCompilation(current *snapshot.SourceDelta, incoming *depgraph.Delta, externalParts []*depgraph.Subgraph) (*snapshot.SourceDelta, error) {
	return u.update(current, incoming, false, externalParts, false)
}

// UpdateAfterCompilation computes the next round's delta from what the round
// produced and, without errors, integrates it into the graph
func (u *Updater) UpdateAfterCompilation(current *snapshot.SourceDelta, incoming *depgraph.Delta, errorsDetected bool, externalParts []*depgraph.Subgraph) (*snapshot.SourceDelta, error) {
	return u.update(current, incoming, errorsDetected, externalParts, true)
}

func (u *Updater) update(current *snapshot.SourceDelta, incoming *depgraph.Delta, errorsDetected bool, externalParts []*depgraph.Subgraph, afterCompilation bool) (*snapshot.SourceDelta, error) {
	logger := u.logger.With().Bool("after", afterCompilation).Bool("errors", errorsDetected).Logger()

	if current.IsRecompileAll() && ((afterCompilation && errorsDetected) || (!afterCompilation && incoming.IsSourceOnly())) {
		logger.Debug().Msg("Full recompile already scheduled, nothing to differentiate")
		return current, nil
	}

	base := current.Base()
	params := depgraph.DifferentiateParams{
		BelongsToChunk:                base.Contains,
		CalculateAffected:             !current.IsRecompileAll(),
		ProcessConstantsIncrementally: u.constants,
	}

	result, err := u.graph.Differentiate(incoming, params, externalParts)
	if err != nil {
		return nil, err
	}

	if afterCompilation && current.IsRecompileAll() && !errorsDetected {
		if err := u.graph.Integrate(result); err != nil {
			return nil, err
		}
		logger.Debug().Msg("Integrated full recompile")
		return snapshot.NewBaseDelta(base), nil
	}

	next := current
	if afterCompilation {
		next = snapshot.NewBaseDelta(base)
	}

	if !result.Incremental {
		logger.Info().Str("reason", result.Reason).Msg("Non-incremental change, recompiling target")
		next.MarkRecompileAll()
		return next, nil
	}

	if params.CalculateAffected && !errorsDetected {
		var fresh []types.NodeSource
		for _, src := range result.AffectedSources {
			if base.Contains(src) && !current.IsMarked(src) {
				fresh = append(fresh, src)
			}
		}
		if u.policy.IsLoop(u.seen, fresh) {
			logger.Warn().Strs("affected", types.SourceStrings(fresh)).Msg("Affected sources repeat across rounds, recompiling target")
			next.MarkRecompileAll()
			return next, nil
		}
		for _, src := range fresh {
			u.seen[src] = true
		}
	}

	for _, src := range result.AffectedSources {
		if !base.Contains(src) {
			continue
		}
		if IsModuleDescriptor(src, u.moduleDescriptor) {
			logger.Info().Str("source", src.String()).Msg("Module descriptor affected, recompiling target")
			next.MarkRecompileAll()
			return next, nil
		}
		next.MarkRecompile(src)
	}

	if afterCompilation && !errorsDetected {
		if err := u.graph.Integrate(result); err != nil {
			return nil, err
		}
	}

	logger.Debug().
		Int("affected", len(result.AffectedSources)).
		Int("modified", len(next.Modified())).
		Msg("Graph updated")
	return next, nil
}
