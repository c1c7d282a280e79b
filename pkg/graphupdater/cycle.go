package graphupdater

import (
	"github.com/arthur-debert/incr/pkg/types"
)

// CyclePolicy decides whether a round's affected sources indicate a build
// loop
type CyclePolicy interface {
	// IsLoop is given the sources seen in earlier rounds of the build and
	// the sources the current round would add
	IsLoop(seen map[types.NodeSource]bool, affected []types.NodeSource) bool
}

// SubsetCyclePolicy reports a loop when a non-empty affected set adds nothing
// to what earlier rounds already saw. It may mistake a slowly converging
// build for a loop; the cost is one full recompile.
type SubsetCyclePolicy struct{}

// IsLoop implements CyclePolicy
func (SubsetCyclePolicy) IsLoop(seen map[types.NodeSource]bool, affected []types.NodeSource) bool {
	if len(affected) == 0 {
		return false
	}
	for _, src := range affected {
		if !seen[src] {
			return false
		}
	}
	return true
}

// DisabledCyclePolicy never reports a loop
type DisabledCyclePolicy struct{}

// IsLoop implements CyclePolicy
func (DisabledCyclePolicy) IsLoop(map[types.NodeSource]bool, []types.NodeSource) bool {
	return false
}
