// pkg/testutil/runner.go
// DEPENDENCIES: compiler, depgraph, diagnostics
// PURPOSE: Scripted compiler runner recording every invocation

package testutil

import (
	"context"
	"path"
	"strings"

	"github.com/arthur-debert/incr/pkg/compiler"
	"github.com/arthur-debert/incr/pkg/depgraph"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/types"
)

// Class describes the node a ScriptedRunner produces for one source
type Class struct {
	// API is the node's API digest; empty means "v1"
	API types.Digest
	// Uses lists node IDs the class depends on
	Uses     []string
	Constant bool
}

// CompileCall records one Compile invocation
type CompileCall struct {
	ToCompile []types.NodeSource
	ToDelete  []types.NodeSource
}

// ScriptedRunner compiles sources with a given extension into one
// "<name>.class" entry and one node each. The node ID is the source path
// without its extension.
type ScriptedRunner struct {
	RunnerName string
	Extension  string
	Classes    map[types.NodeSource]Class
	StalePaths []string
	// OnCompile runs before anything is written. A non-nil code is returned
	// as is, without producing outputs.
	OnCompile func(call int, c CompileCall, sink diagnostics.Sink) *compiler.ExitCode

	Calls []CompileCall
}

// NewScriptedRunner creates a runner for extension (".java")
func NewScriptedRunner(name, extension string) *ScriptedRunner {
	return &ScriptedRunner{
		RunnerName: name,
		Extension:  extension,
		Classes:    make(map[types.NodeSource]Class),
	}
}

// NodeID returns the node ID produced for src
func NodeID(src types.NodeSource) string {
	s := string(src)
	return strings.TrimSuffix(s, path.Ext(s))
}

// Name implements compiler.Runner
func (r *ScriptedRunner) Name() string { return r.RunnerName }

// CanCompile implements compiler.Runner
func (r *ScriptedRunner) CanCompile(src types.NodeSource) bool {
	return strings.HasSuffix(string(src), r.Extension)
}

// OutputPathsToDelete implements compiler.Runner
func (r *ScriptedRunner) OutputPathsToDelete() []string { return r.StalePaths }

// Compile implements compiler.Runner
func (r *ScriptedRunner) Compile(ctx context.Context, toCompile, toDelete []types.NodeSource, sink diagnostics.Sink, out compiler.OutputSink) compiler.ExitCode {
	call := CompileCall{
		ToCompile: append([]types.NodeSource(nil), toCompile...),
		ToDelete:  append([]types.NodeSource(nil), toDelete...),
	}
	r.Calls = append(r.Calls, call)
	if r.OnCompile != nil {
		if code := r.OnCompile(len(r.Calls), call, sink); code != nil {
			return *code
		}
	}

	for _, src := range toCompile {
		class := r.Classes[src]
		api := class.API
		if api == "" {
			api = "v1"
		}
		id := NodeID(src)
		entry := id + ".class"
		if err := out.WriteOutput(entry, []byte(string(src)+"@"+string(api)), []types.NodeSource{src}); err != nil {
			sink.Report(diagnostics.Errorf(r.RunnerName, "write %s: %v", entry, err))
			return compiler.Error
		}
		out.RegisterNode(depgraph.Node{
			ID:        id,
			Sources:   []types.NodeSource{src},
			APIDigest: api,
			Usages:    class.Uses,
			Constant:  class.Constant,
		})
	}
	return compiler.OK
}

// Compiled returns every source compiled so far, in call order
func (r *ScriptedRunner) Compiled() []types.NodeSource {
	var out []types.NodeSource
	for _, c := range r.Calls {
		out = append(out, c.ToCompile...)
	}
	return out
}

// Reset forgets recorded calls
func (r *ScriptedRunner) Reset() {
	r.Calls = nil
}

// Code returns a pointer to code, for OnCompile hooks
func Code(code compiler.ExitCode) *compiler.ExitCode {
	return &code
}
