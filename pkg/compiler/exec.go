package compiler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arthur-debert/incr/pkg/depgraph"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/logging"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Environment passed to external compilers
const (
	EnvOutDir      = "INCR_OUT_DIR"
	EnvABIDir      = "INCR_ABI_DIR"
	EnvGraphFile   = "INCR_GRAPH_FILE"
	EnvDeletedFile = "INCR_DELETED_FILE"
	EnvTarget      = "INCR_TARGET"
)

// waitDelay bounds how long a canceled compiler's children may keep its
// output pipes open
const waitDelay = 2 * time.Second

// GraphFileName is the node description an external compiler may write
const GraphFileName = "graph.yaml"

var diagnosticLine = regexp.MustCompile(`^(.+?):(\d+):\s*(error|warning|note|info):\s*(.*)$`)

// ExecOptions configures an ExecRunner
type ExecOptions struct {
	Name       string
	Target     string
	BaseDir    string
	Extensions []string
	// Command is the executable and its fixed arguments. The argument file
	// is appended as "@<path>".
	Command []string
	// Args are the builder arguments, written to the argument file before
	// the sources
	Args []string
	// StaleOutputs are entries deleted whenever the runner recompiles
	StaleOutputs []string
}

// GraphFile is the YAML document an external compiler writes to describe
// the nodes it produced
type GraphFile struct {
	Nodes []depgraph.Node `yaml:"nodes"`
}

// ExecRunner runs an external compiler. The compiler is handed an argument
// file holding the builder arguments and the absolute source paths, one per
// line. It writes classes below $INCR_OUT_DIR, ABI classes below
// $INCR_ABI_DIR and may describe the nodes it produced in $INCR_GRAPH_FILE.
// Lines of the form "path:line: error: text" on stderr become diagnostics.
type ExecRunner struct {
	opts    ExecOptions
	matches func(types.NodeSource) bool
	logger  zerolog.Logger
}

// NewExecRunner creates an exec runner
func NewExecRunner(opts ExecOptions) *ExecRunner {
	return &ExecRunner{
		opts:    opts,
		matches: ExtensionMatcher(opts.Extensions),
		logger:  logging.GetLogger("compiler").With().Str("runner", opts.Name).Logger(),
	}
}

func (r *ExecRunner) Name() string { return r.opts.Name }

func (r *ExecRunner) CanCompile(src types.NodeSource) bool { return r.matches(src) }

func (r *ExecRunner) OutputPathsToDelete() []string { return r.opts.StaleOutputs }

// Compile implements Runner
func (r *ExecRunner) Compile(ctx context.Context, toCompile, toDelete []types.NodeSource, sink diagnostics.Sink, out OutputSink) ExitCode {
	if len(toCompile) == 0 {
		return OK
	}
	if len(r.opts.Command) == 0 {
		sink.Report(diagnostics.Errorf(r.opts.Name, "no command configured"))
		return Error
	}
	done := logging.LogOperationStart(r.logger, "exec compile")
	defer done()

	work, err := os.MkdirTemp("", "incr-"+r.opts.Name+"-")
	if err != nil {
		sink.Report(diagnostics.Errorf(r.opts.Name, "cannot create work dir: %v", err))
		return Error
	}
	defer func() { _ = os.RemoveAll(work) }()

	outDir := filepath.Join(work, "out")
	abiDir := filepath.Join(work, "abi")
	graphFile := filepath.Join(work, GraphFileName)
	deletedFile := filepath.Join(work, "deleted.txt")
	argFile := filepath.Join(work, "args.txt")
	for _, dir := range []string{outDir, abiDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			sink.Report(diagnostics.Errorf(r.opts.Name, "cannot create work dir: %v", err))
			return Error
		}
	}
	if err := os.WriteFile(argFile, []byte(r.argFileContent(toCompile)), 0644); err != nil {
		sink.Report(diagnostics.Errorf(r.opts.Name, "cannot write argument file: %v", err))
		return Error
	}
	if err := os.WriteFile(deletedFile, []byte(joinLines(types.SourceStrings(toDelete))), 0644); err != nil {
		sink.Report(diagnostics.Errorf(r.opts.Name, "cannot write deleted file list: %v", err))
		return Error
	}

	args := append(append([]string(nil), r.opts.Command[1:]...), "@"+argFile)
	cmd := exec.CommandContext(ctx, r.opts.Command[0], args...)
	cmd.Dir = r.opts.BaseDir
	cmd.WaitDelay = waitDelay
	cmd.Env = append(os.Environ(),
		EnvOutDir+"="+outDir,
		EnvABIDir+"="+abiDir,
		EnvGraphFile+"="+graphFile,
		EnvDeletedFile+"="+deletedFile,
		EnvTarget+"="+r.opts.Target,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug().Str("command", r.opts.Command[0]).Int("sources", len(toCompile)).Msg("Running compiler")
	runErr := cmd.Run()
	if ctx.Err() != nil {
		r.logger.Info().Msg("Compiler canceled")
		return Cancel
	}

	for _, line := range lines(stdout.String()) {
		sink.Report(diagnostics.Message{Kind: diagnostics.Stdout, Origin: r.opts.Name, Text: line})
	}
	reportedError := r.reportStderr(stderr.String(), sink)

	if runErr != nil {
		r.logger.Debug().Err(runErr).Str("stderr", stderr.String()).Msg("Compiler failed")
		if _, ok := runErr.(*exec.ExitError); !ok {
			sink.Report(diagnostics.Errorf(r.opts.Name, "cannot run %s: %v", r.opts.Command[0], runErr))
		}
		return Error
	}
	if reportedError {
		return Error
	}

	graph, err := readGraphFile(graphFile)
	if err != nil {
		sink.Report(diagnostics.Errorf(r.opts.Name, "cannot read %s: %v", GraphFileName, err))
		return Error
	}
	sourcesOf := make(map[string][]types.NodeSource)
	for _, n := range graph.Nodes {
		for _, o := range n.Outputs {
			sourcesOf[o] = append(sourcesOf[o], n.Sources...)
		}
	}

	if err := collect(outDir, func(entry string, data []byte) error {
		return out.WriteOutput(entry, data, sourcesOf[entry])
	}); err != nil {
		sink.Report(diagnostics.Errorf(r.opts.Name, "cannot collect outputs: %v", err))
		return Error
	}
	if err := collect(abiDir, out.WriteABIOutput); err != nil {
		sink.Report(diagnostics.Errorf(r.opts.Name, "cannot collect ABI outputs: %v", err))
		return Error
	}
	for _, n := range graph.Nodes {
		out.RegisterNode(n)
	}
	r.logger.Debug().Int("nodes", len(graph.Nodes)).Msg("Compiler finished")
	return OK
}

func (r *ExecRunner) argFileContent(toCompile []types.NodeSource) string {
	var b strings.Builder
	for _, arg := range r.opts.Args {
		b.WriteString(arg)
		b.WriteByte('\n')
	}
	for _, src := range toCompile {
		b.WriteString(filepath.Join(r.opts.BaseDir, filepath.FromSlash(string(src))))
		b.WriteByte('\n')
	}
	return b.String()
}

// reportStderr turns stderr into diagnostics and reports whether an error was
// among them. Lines that don't look like a diagnostic are informational.
func (r *ExecRunner) reportStderr(stderr string, sink diagnostics.Sink) bool {
	hasError := false
	for _, line := range lines(stderr) {
		m, ok := ParseDiagnostic(line)
		if !ok {
			sink.Report(diagnostics.Message{Kind: diagnostics.Info, Origin: r.opts.Name, Text: line})
			continue
		}
		m.Origin = r.opts.Name
		if rel, err := filepath.Rel(r.opts.BaseDir, m.Source); err == nil && !strings.HasPrefix(rel, "..") {
			m.Source = filepath.ToSlash(rel)
		}
		if m.Kind == diagnostics.Error {
			hasError = true
		}
		sink.Report(m)
	}
	return hasError
}

// ParseDiagnostic parses a "path:line: kind: text" line
func ParseDiagnostic(line string) (diagnostics.Message, bool) {
	parts := diagnosticLine.FindStringSubmatch(line)
	if parts == nil {
		return diagnostics.Message{}, false
	}
	lineNo, err := strconv.Atoi(parts[2])
	if err != nil {
		return diagnostics.Message{}, false
	}
	kind := diagnostics.Info
	switch parts[3] {
	case "error":
		kind = diagnostics.Error
	case "warning":
		kind = diagnostics.Warning
	}
	return diagnostics.Message{Kind: kind, Source: parts[1], Line: lineNo, Text: parts[4]}, true
}

func readGraphFile(path string) (*GraphFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &GraphFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	var g GraphFile
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// collect hands every file below root to fn as a slash-separated entry name
func collect(root string, fn func(entry string, data []byte) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		return fn(filepath.ToSlash(rel), data)
	})
}

func lines(s string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func joinLines(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return strings.Join(items, "\n") + "\n"
}
