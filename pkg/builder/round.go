package builder

import (
	"strings"
	"time"

	"github.com/arthur-debert/incr/pkg/compiler"
	"github.com/arthur-debert/incr/pkg/depgraph"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/metrics"
	"github.com/arthur-debert/incr/pkg/snapshot"
	"github.com/arthur-debert/incr/pkg/storage"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/rs/zerolog"
)

// roundState is the value threaded through the round loop. Each round
// consumes one and returns the next.
type roundState struct {
	number int
	delta  *snapshot.SourceDelta
	done   bool
	code   compiler.ExitCode
}

func (s roundState) first() bool {
	return s.number == 1
}

// finish ends the build with code
func (s roundState) finish(code compiler.ExitCode) roundState {
	s.done = true
	s.code = code
	return s
}

// advance runs one round and returns the state of the next one
func (r *buildRun) advance(state roundState) roundState {
	delta := state.delta
	logger := r.logger.With().
		Int("round", state.number).
		Bool("recompileAll", delta.IsRecompileAll()).
		Logger()
	logger.Debug().
		Int("modified", len(delta.Modified())).
		Int("deleted", len(delta.Deleted())).
		Msg("Round started")
	r.b.metrics.Rounds.Inc()

	if delta.IsRecompileAll() {
		if err := r.store.ClearBuildState(); err != nil {
			r.sink.Report(diagnostics.Errorf(origin, "cannot clear build state: %v", err))
			return state.finish(compiler.Error)
		}
		// the graph store was recreated
		r.updater = nil
	} else if state.first() {
		if err := r.store.PurgeTrash(); err != nil {
			logger.Warn().Err(err).Msg("Failed to purge trash")
		}
	}

	var buffer *diagnostics.BufferingSink
	var sink diagnostics.Sink
	if state.first() {
		buffer = diagnostics.NewBufferingSink(r.sink)
		sink = buffer
	} else {
		sink = diagnostics.NewPassThroughSink(r.sink)
	}
	flush := func() {
		if buffer != nil {
			buffer.Flush()
		}
	}

	graph, err := r.store.Graph()
	if err != nil {
		flush()
		r.sink.Report(diagnostics.Errorf(origin, "cannot open dependency graph: %v", err))
		return state.finish(compiler.Error)
	}

	modified := delta.Modified()
	deleted := delta.Deleted()

	if state.first() && len(deleted) > 0 && !delta.IsRecompileAll() {
		if err := r.removeOutputs(logger, graph, deleted, nil); err != nil {
			flush()
			r.sink.Report(diagnostics.Errorf(origin, "cannot delete outputs of removed sources: %v", err))
			return state.finish(compiler.Error)
		}
	}

	out, err := newRoundOutput(r.store)
	if err != nil {
		flush()
		r.sink.Report(diagnostics.Errorf(origin, "cannot open scratch store: %v", err))
		return state.finish(compiler.Error)
	}

	for _, runner := range r.b.registry.Runners() {
		toCompile := compiler.Filter(runner, modified)
		toDelete := compiler.Filter(runner, deleted)
		if len(toCompile) == 0 && len(toDelete) == 0 {
			continue
		}
		name := runner.Name()

		if !delta.IsRecompileAll() {
			if err := r.removeOutputs(logger, graph, toCompile, runner.OutputPathsToDelete()); err != nil {
				sink.Report(diagnostics.Errorf(name, "cannot delete stale outputs: %v", err))
				break
			}
		}

		logger.Info().Str("compiler", name).Int("sources", len(toCompile)).Int("deleted", len(toDelete)).Msg("Compiling")
		start := time.Now()
		code := runner.Compile(r.ctx, toCompile, toDelete, sink, out)
		stat := r.stat(name)
		stat.sources += len(toCompile)
		stat.elapsed += time.Since(start)
		r.b.metrics.SourcesCompiled.WithLabelValues(name).Add(float64(len(toCompile)))

		if code == compiler.Cancel || r.ctx.Err() != nil {
			logger.Info().Str("compiler", name).Msg("Build canceled")
			out.discard()
			flush()
			return state.finish(compiler.Cancel)
		}
		if err := out.commit(); err != nil {
			sink.Report(diagnostics.Errorf(name, "cannot store outputs: %v", err))
		}
		if code == compiler.Error && !sink.HasErrors() {
			sink.Report(diagnostics.Errorf(name, "%s completed with errors", name))
		}
		if sink.HasErrors() {
			logger.Debug().Str("compiler", name).Msg("Errors reported, skipping remaining compilers")
			break
		}
	}

	errorsDetected := sink.HasErrors()
	updater, err := r.graphUpdater()
	if err != nil {
		flush()
		r.sink.Report(diagnostics.Errorf(origin, "cannot open dependency graph: %v", err))
		return state.finish(compiler.Error)
	}
	produced := graph.CreateDelta(modified, deleted, false).AddNodes(out.Nodes()...)
	next, err := updater.UpdateAfterCompilation(delta, produced, errorsDetected, nil)
	if err != nil {
		flush()
		r.sink.Report(diagnostics.Errorf(origin, "dependency graph update failed: %v", err))
		return state.finish(compiler.Error)
	}

	if !errorsDetected {
		flush()
		if next.IsRecompileAll() {
			r.b.metrics.RecompileAll.WithLabelValues(metrics.ReasonEscalated).Inc()
		}
		return roundState{number: state.number + 1, delta: next, code: compiler.OK}
	}

	if delta.IsRecompileAll() || !escalates(delta, next) || !state.first() {
		logger.Info().Msg("Compilation failed")
		flush()
		return state.finish(compiler.Error)
	}

	logger.Info().
		Int("affected", len(next.Modified())).
		Bool("recompileAll", next.IsRecompileAll()).
		Msg("Retrying with expanded scope")
	buffer.Discard()
	delta.Merge(next)
	return roundState{number: state.number + 1, delta: delta, code: compiler.OK}
}

// escalates reports whether next would compile anything current didn't
func escalates(current, next *snapshot.SourceDelta) bool {
	if next.IsRecompileAll() {
		return true
	}
	for _, src := range next.Modified() {
		if !current.IsMarked(src) {
			return true
		}
	}
	return false
}

// removeOutputs deletes the output entries recorded for sources plus extra
func (r *buildRun) removeOutputs(logger zerolog.Logger, graph *depgraph.Store, sources []types.NodeSource, extra []string) error {
	entries, err := graph.OutputsOf(sources)
	if err != nil {
		return err
	}
	entries = append(entries, extra...)
	var removed []string
	for _, entry := range entries {
		ok, err := r.store.Outputs().Remove(entry)
		if err != nil {
			return err
		}
		if ok {
			removed = append(removed, entry)
		}
	}
	if len(removed) > 0 {
		logger.Info().Strs("outputs", removed).Msg("Deleted outputs")
	}
	return nil
}

const (
	stagedOutput = "out/"
	stagedABI    = "abi/"
	// nodes registered for sources without one of their own
	orphanPrefix = "outputs:"
)

// roundOutput collects what compilers produce during a round. Entries are
// staged in the scratch store and committed to the archives once a compiler
// returns, so a canceled compiler leaves the archives untouched.
type roundOutput struct {
	store   *storage.Manager
	scratch *storage.ScratchStore

	nodes   []depgraph.Node
	entries map[string][]types.NodeSource
	order   []string
}

func newRoundOutput(store *storage.Manager) (*roundOutput, error) {
	scratch, err := store.Scratch()
	if err != nil {
		return nil, err
	}
	if err := scratch.DeletePrefix(""); err != nil {
		return nil, err
	}
	return &roundOutput{
		store:   store,
		scratch: scratch,
		entries: make(map[string][]types.NodeSource),
	}, nil
}

// WriteOutput implements compiler.OutputSink
func (o *roundOutput) WriteOutput(entry string, data []byte, sources []types.NodeSource) error {
	if err := o.scratch.Put(stagedOutput+entry, data); err != nil {
		return err
	}
	if _, ok := o.entries[entry]; !ok {
		o.order = append(o.order, entry)
	}
	o.entries[entry] = append([]types.NodeSource(nil), sources...)
	return nil
}

// WriteABIOutput implements compiler.OutputSink
func (o *roundOutput) WriteABIOutput(entry string, data []byte) error {
	return o.scratch.Put(stagedABI+entry, data)
}

// RegisterNode implements compiler.OutputSink
func (o *roundOutput) RegisterNode(node depgraph.Node) {
	o.nodes = append(o.nodes, node)
}

// ResolveClass implements compiler.OutputSink
func (o *roundOutput) ResolveClass(name string) ([]byte, bool, error) {
	entry := name
	if !strings.HasSuffix(entry, ".class") {
		entry += ".class"
	}
	if data, ok, err := o.scratch.Get(stagedOutput + entry); err != nil || ok {
		return data, ok, err
	}
	return o.store.ClassResolver().Resolve(name)
}

// commit moves staged entries into the archives
func (o *roundOutput) commit() error {
	outputs := o.store.Outputs()
	if err := o.move(stagedOutput, outputs.Put); err != nil {
		return err
	}
	return o.move(stagedABI, outputs.PutABI)
}

func (o *roundOutput) move(prefix string, put func(string, []byte) error) error {
	keys, err := o.scratch.Keys(prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		data, ok, err := o.scratch.Get(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := put(strings.TrimPrefix(key, prefix), data); err != nil {
			return err
		}
	}
	return o.scratch.DeletePrefix(prefix)
}

// discard drops entries staged by an unfinished compiler
func (o *roundOutput) discard() {
	_ = o.scratch.DeletePrefix("")
}

// Nodes returns the nodes produced this round. Nodes registered without
// outputs get the entries written for their sources; sources that produced
// entries but no node get a placeholder node so the entries can be found
// again by source.
func (o *roundOutput) Nodes() []depgraph.Node {
	bySource := make(map[types.NodeSource][]string)
	var sourceOrder []types.NodeSource
	for _, entry := range o.order {
		for _, src := range o.entries[entry] {
			if _, ok := bySource[src]; !ok {
				sourceOrder = append(sourceOrder, src)
			}
			bySource[src] = append(bySource[src], entry)
		}
	}

	covered := make(map[types.NodeSource]bool)
	nodes := make([]depgraph.Node, 0, len(o.nodes))
	for _, n := range o.nodes {
		if len(n.Outputs) == 0 {
			seen := make(map[string]bool)
			for _, src := range n.Sources {
				for _, entry := range bySource[src] {
					if !seen[entry] {
						seen[entry] = true
						n.Outputs = append(n.Outputs, entry)
					}
				}
			}
		}
		for _, src := range n.Sources {
			covered[src] = true
		}
		nodes = append(nodes, n)
	}

	for _, src := range sourceOrder {
		if covered[src] {
			continue
		}
		nodes = append(nodes, depgraph.Node{
			ID:      orphanPrefix + string(src),
			Sources: []types.NodeSource{src},
			Outputs: bySource[src],
		})
	}
	return nodes
}
