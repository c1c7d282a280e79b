package compiler

import (
	"context"

	"github.com/arthur-debert/incr/pkg/depgraph"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/types"
)

// ExitCode is the outcome of a compiler invocation or a build
type ExitCode int

const (
	OK ExitCode = iota
	Error
	Cancel
)

// String returns the upper-case name of the code
func (c ExitCode) String() string {
	switch c {
	case OK:
		return "OK"
	case Error:
		return "ERROR"
	case Cancel:
		return "CANCEL"
	default:
		return "UNKNOWN"
	}
}

// OutputSink receives what a compiler produces
type OutputSink interface {
	// WriteOutput stores an entry of the primary output archive produced
	// from sources
	WriteOutput(entry string, data []byte, sources []types.NodeSource) error
	// WriteABIOutput stores an entry of the ABI archive
	WriteABIOutput(entry string, data []byte) error
	// RegisterNode records a dependency graph node produced this round
	RegisterNode(node depgraph.Node)
	// ResolveClass looks a class up among this build's outputs, then the
	// classpath
	ResolveClass(name string) ([]byte, bool, error)
}

// Runner is one compiler or processing stage
type Runner interface {
	Name() string
	CanCompile(src types.NodeSource) bool
	// Compile compiles toCompile. toDelete lists sources removed since the
	// previous build, for runners that keep their own state.
	Compile(ctx context.Context, toCompile, toDelete []types.NodeSource, sink diagnostics.Sink, out OutputSink) ExitCode
	// OutputPathsToDelete lists extra output entries that are stale whenever
	// the runner recompiles anything
	OutputPathsToDelete() []string
}

// Registry is the ordered list of runners of a target
type Registry struct {
	runners []Runner
}

// NewRegistry registers runners in order
func NewRegistry(runners ...Runner) *Registry {
	r := &Registry{}
	for _, runner := range runners {
		r.Register(runner)
	}
	return r
}

// Register appends a runner
func (r *Registry) Register(runner Runner) {
	r.runners = append(r.runners, runner)
}

// Runners returns the runners in registration order
func (r *Registry) Runners() []Runner {
	return r.runners
}

// Len returns the number of runners
func (r *Registry) Len() int {
	return len(r.runners)
}

// Filter returns the sources runner accepts, keeping order
func Filter(runner Runner, sources []types.NodeSource) []types.NodeSource {
	var out []types.NodeSource
	for _, src := range sources {
		if runner.CanCompile(src) {
			out = append(out, src)
		}
	}
	return out
}

// ExtensionMatcher returns a CanCompile function accepting the given
// extensions (with or without the leading dot)
func ExtensionMatcher(extensions []string) func(types.NodeSource) bool {
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		if ext != "" && ext[0] != '.' {
			ext = "." + ext
		}
		set[ext] = true
	}
	return func(src types.NodeSource) bool {
		return set[src.Ext()]
	}
}
