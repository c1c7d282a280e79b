package compiler

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/incr/pkg/depgraph"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/logging"
	"github.com/arthur-debert/incr/pkg/snapshot"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/rs/zerolog"
)

// ResourceOptions configures a ResourceRunner
type ResourceOptions struct {
	Name       string
	FS         types.FS
	BaseDir    string
	Extensions []string
	// StripPrefix is removed from a source path to form its entry name
	StripPrefix string
}

// ResourceRunner copies sources into the output archive unchanged. Every
// resource is its own graph node.
type ResourceRunner struct {
	opts    ResourceOptions
	matches func(types.NodeSource) bool
	logger  zerolog.Logger
}

// NewResourceRunner creates a resource runner
func NewResourceRunner(opts ResourceOptions) *ResourceRunner {
	if opts.Name == "" {
		opts.Name = "resources"
	}
	return &ResourceRunner{
		opts:    opts,
		matches: ExtensionMatcher(opts.Extensions),
		logger:  logging.GetLogger("compiler").With().Str("runner", opts.Name).Logger(),
	}
}

func (r *ResourceRunner) Name() string { return r.opts.Name }

func (r *ResourceRunner) CanCompile(src types.NodeSource) bool { return r.matches(src) }

func (r *ResourceRunner) OutputPathsToDelete() []string { return nil }

// EntryName returns the archive entry src is copied to
func (r *ResourceRunner) EntryName(src types.NodeSource) string {
	return strings.TrimPrefix(string(src), r.opts.StripPrefix)
}

// Compile implements Runner
func (r *ResourceRunner) Compile(ctx context.Context, toCompile, _ []types.NodeSource, sink diagnostics.Sink, out OutputSink) ExitCode {
	code := OK
	for _, src := range toCompile {
		if ctx.Err() != nil {
			return Cancel
		}
		data, err := r.opts.FS.ReadFile(filepath.Join(r.opts.BaseDir, filepath.FromSlash(string(src))))
		if err != nil {
			sink.Report(diagnostics.Message{Kind: diagnostics.Error, Origin: r.opts.Name, Source: string(src), Text: "cannot read resource: " + err.Error()})
			code = Error
			continue
		}
		entry := r.EntryName(src)
		if err := out.WriteOutput(entry, data, []types.NodeSource{src}); err != nil {
			sink.Report(diagnostics.Message{Kind: diagnostics.Error, Origin: r.opts.Name, Source: string(src), Text: "cannot write output: " + err.Error()})
			code = Error
			continue
		}
		out.RegisterNode(depgraph.Node{
			ID:        "resource:" + entry,
			Sources:   []types.NodeSource{src},
			Outputs:   []string{entry},
			APIDigest: snapshot.DigestBytes(data),
		})
	}
	r.logger.Debug().Int("copied", len(toCompile)).Str("result", code.String()).Msg("Resources processed")
	return code
}
