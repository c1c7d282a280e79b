package builder

import (
	"context"
	stderrors "errors"
	"os"

	"github.com/arthur-debert/incr/pkg/compiler"
	"github.com/arthur-debert/incr/pkg/errors"
	"github.com/arthur-debert/incr/pkg/paths"
	"github.com/arthur-debert/incr/pkg/snapshot"
	"github.com/arthur-debert/incr/pkg/types"
)

// Plan is what a build would compile, computed without running compilers
type Plan struct {
	Target       string `json:"target"`
	RecompileAll bool   `json:"recompile_all"`
	// Reason is set when RecompileAll is
	Reason   string             `json:"reason,omitempty"`
	Modified []types.NodeSource `json:"modified"`
	Deleted  []types.NodeSource `json:"deleted"`
	// PerCompiler lists what each runner would compile, in registration
	// order
	PerCompiler []CompilerPlan `json:"per_compiler"`
}

// CompilerPlan is one runner's share of a plan
type CompilerPlan struct {
	Compiler string             `json:"compiler"`
	Sources  []types.NodeSource `json:"sources"`
}

// Plan computes the first round's scope. Storage is released without saving
// anything.
func (b *Builder) Plan(ctx context.Context, bc *BuildContext) (*Plan, error) {
	r, err := b.newRun(ctx, bc)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = r.store.Close(false)
	}()

	present := bc.sources()
	delta, reason := r.decide(present)
	if delta == nil {
		delta = snapshot.NewBaseDelta(present)
	}
	if reason != "" {
		delta.MarkRecompileAll()
	}

	plan := &Plan{
		Target:       bc.Target,
		RecompileAll: delta.IsRecompileAll(),
		Reason:       reason,
		Modified:     delta.Modified(),
		Deleted:      delta.Deleted(),
	}
	for _, runner := range b.registry.Runners() {
		srcs := compiler.Filter(runner, plan.Modified)
		if len(srcs) == 0 {
			continue
		}
		plan.PerCompiler = append(plan.PerCompiler, CompilerPlan{Compiler: runner.Name(), Sources: srcs})
	}
	r.logger.Debug().
		Bool("recompileAll", plan.RecompileAll).
		Int("modified", len(plan.Modified)).
		Int("deleted", len(plan.Deleted)).
		Msg("Plan computed")
	return plan, nil
}

// Clean removes the outputs and the data directory of a target
func (b *Builder) Clean(bc *BuildContext) error {
	p, err := paths.New(bc.DataDir, b.cfg.Layout())
	if err != nil {
		return err
	}
	var errs []error
	for _, path := range []string{bc.OutputPath, bc.ABIOutputPath} {
		if path == "" {
			continue
		}
		if err := b.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, errors.Wrapf(err, errors.ErrFileAccess, "failed to remove %s", path))
		}
	}
	if err := b.fs.RemoveAll(p.DataDir()); err != nil {
		errs = append(errs, errors.Wrapf(err, errors.ErrFileAccess, "failed to remove %s", p.DataDir()))
	}
	logger := bc.logger()
	logger.Info().Str("dataDir", p.DataDir()).Msg("Target cleaned")
	return stderrors.Join(errs...)
}
