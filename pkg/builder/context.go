package builder

import (
	"path/filepath"

	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/logging"
	"github.com/arthur-debert/incr/pkg/snapshot"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/rs/zerolog"
)

// BuildContext describes one build of one target. It is owned by the
// caller; the builder only reports diagnostics through Sink.
type BuildContext struct {
	Target string
	// Rebuild forces a full recompile
	Rebuild bool
	BaseDir string
	DataDir string
	// OutputPath is the primary output archive; ABIOutputPath is optional
	OutputPath    string
	ABIOutputPath string
	// Sources and Libraries are the present snapshots. Libraries are keyed
	// by absolute path, in classpath order.
	Sources   *snapshot.Snapshot[types.NodeSource]
	Libraries *snapshot.Snapshot[string]
	// Args are the builder arguments passed through to compilers
	Args []string
	// SourcePath maps a source to its path on disk. Nil joins BaseDir.
	SourcePath func(types.NodeSource) string
	Sink       diagnostics.Sink
	// Logger defaults to the target logger
	Logger *zerolog.Logger
}

// PathOf returns the on-disk path of src
func (bc *BuildContext) PathOf(src types.NodeSource) string {
	if bc.SourcePath != nil {
		return bc.SourcePath(src)
	}
	return filepath.Join(bc.BaseDir, filepath.FromSlash(string(src)))
}

func (bc *BuildContext) sources() *snapshot.Snapshot[types.NodeSource] {
	if bc.Sources == nil {
		return snapshot.Empty[types.NodeSource]()
	}
	return bc.Sources
}

func (bc *BuildContext) libraries() *snapshot.Snapshot[string] {
	if bc.Libraries == nil {
		return snapshot.Empty[string]()
	}
	return bc.Libraries
}

func (bc *BuildContext) sink() diagnostics.Sink {
	if bc.Sink == nil {
		return diagnostics.NewReporter(nil)
	}
	return bc.Sink
}

func (bc *BuildContext) logger() zerolog.Logger {
	if bc.Logger == nil {
		return logging.ForTarget(bc.Target)
	}
	return *bc.Logger
}
