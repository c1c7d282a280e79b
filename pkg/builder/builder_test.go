// pkg/builder/builder_test.go
// TEST TYPE: Integration Test
// DEPENDENCIES: temp dir, bolt, zip fixtures, scripted runner
// PURPOSE: Verify build decisions, round loop, recovery and persistence

package builder_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/arthur-debert/incr/pkg/builder"
	"github.com/arthur-debert/incr/pkg/compiler"
	"github.com/arthur-debert/incr/pkg/config"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/metrics"
	"github.com/arthur-debert/incr/pkg/paths"
	"github.com/arthur-debert/incr/pkg/storage"
	"github.com/arthur-debert/incr/pkg/testutil"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	t        *testing.T
	env      *testutil.TestEnvironment
	cfg      *config.Config
	java     *testutil.ScriptedRunner
	builder  *builder.Builder
	reporter *diagnostics.Reporter
	libs     []string
	args     []string
	rebuild  bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewTestEnvironment(t)
	cfg := config.Default()
	java := testutil.NewScriptedRunner("java", ".java")
	return &fixture{
		t:    t,
		env:  env,
		cfg:  cfg,
		java: java,
		builder: builder.New(builder.Options{
			Config:   cfg,
			Registry: compiler.NewRegistry(java),
			FS:       env.FS,
		}),
	}
}

func (f *fixture) context() *builder.BuildContext {
	f.reporter = diagnostics.NewReporter(nil)
	return &builder.BuildContext{
		Target:     "app",
		Rebuild:    f.rebuild,
		BaseDir:    f.env.BaseDir,
		DataDir:    f.env.DataDir,
		OutputPath: f.env.OutputPath,
		Sources:    f.env.Sources(),
		Libraries:  f.env.Libraries(f.libs...),
		Args:       f.args,
		Sink:       f.reporter,
	}
}

func (f *fixture) build() compiler.ExitCode {
	f.t.Helper()
	f.java.Reset()
	return f.builder.Build(context.Background(), f.context())
}

func (f *fixture) plan() *builder.Plan {
	f.t.Helper()
	p, err := f.builder.Plan(context.Background(), f.context())
	require.NoError(f.t, err)
	return p
}

func (f *fixture) calls() [][]types.NodeSource {
	var out [][]types.NodeSource
	for _, c := range f.java.Calls {
		out = append(out, c.ToCompile)
	}
	return out
}

func srcs(names ...string) []types.NodeSource {
	out := make([]types.NodeSource, len(names))
	for i, n := range names {
		out[i] = types.NodeSource(n)
	}
	return out
}

func tenSources(f *fixture) {
	files := make(map[string]string)
	for i := 0; i < 10; i++ {
		files[fmt.Sprintf("S%d.java", i)] = "class v1"
	}
	f.env.WriteSources(files)
}

func TestBuild_ColdStartThenIdempotent(t *testing.T) {
	f := newFixture(t)
	f.env.WriteSources(map[string]string{"A.java": "a", "B.java": "b"})

	require.Equal(t, compiler.OK, f.build())
	assert.Equal(t, [][]types.NodeSource{srcs("A.java", "B.java")}, f.calls())
	assert.Equal(t, map[string]string{"A.class": "A.java@v1", "B.class": "B.java@v1"}, f.env.Output())

	p := f.plan()
	assert.False(t, p.RecompileAll)
	assert.Empty(t, p.Modified)
	assert.Empty(t, p.Deleted)

	require.Equal(t, compiler.OK, f.build())
	assert.Empty(t, f.java.Calls, "nothing changed, no compiler runs")
	assert.Equal(t, 0, f.reporter.Count(diagnostics.Error))
}

func TestPlan_ColdStartRecompilesAll(t *testing.T) {
	f := newFixture(t)
	f.env.WriteSources(map[string]string{"A.java": "a", "notes.txt": "n"})

	p := f.plan()
	assert.True(t, p.RecompileAll)
	assert.Equal(t, metrics.ReasonNoOutput, p.Reason)
	assert.Equal(t, srcs("A.java", "notes.txt"), p.Modified)
	require.Len(t, p.PerCompiler, 1)
	assert.Equal(t, "java", p.PerCompiler[0].Compiler)
	assert.Equal(t, srcs("A.java"), p.PerCompiler[0].Sources)

	_, err := os.Stat(f.env.OutputPath)
	assert.True(t, os.IsNotExist(err), "plan writes no output")
}

func TestBuild_SingleChangeLeavesOtherOutputs(t *testing.T) {
	f := newFixture(t)
	tenSources(f)
	require.Equal(t, compiler.OK, f.build())
	before := f.env.Output()
	require.Len(t, before, 10)

	f.env.WriteSources(map[string]string{"S3.java": "class v2"})
	f.java.Classes["S3.java"] = testutil.Class{API: "v2"}

	require.Equal(t, compiler.OK, f.build())
	assert.Equal(t, [][]types.NodeSource{srcs("S3.java")}, f.calls())

	after := f.env.Output()
	assert.Equal(t, "S3.java@v2", after["S3.class"])
	for name, content := range before {
		if name != "S3.class" {
			assert.Equal(t, content, after[name], name)
		}
	}
}

func TestPlan_Threshold(t *testing.T) {
	tests := []struct {
		name         string
		changed      int
		recompileAll bool
	}{
		{name: "nine of ten", changed: 9, recompileAll: true},
		{name: "eight of ten", changed: 8, recompileAll: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tenSources(f)
			require.Equal(t, compiler.OK, f.build())

			files := make(map[string]string)
			for i := 0; i < tt.changed; i++ {
				files[fmt.Sprintf("S%d.java", i)] = "class v2"
			}
			f.env.WriteSources(files)

			p := f.plan()
			assert.Equal(t, tt.recompileAll, p.RecompileAll)
			if tt.recompileAll {
				assert.Equal(t, metrics.ReasonThreshold, p.Reason)
			} else {
				assert.Len(t, p.Modified, tt.changed)
			}
		})
	}
}

func TestBuild_AffectedSourcesNextRound(t *testing.T) {
	f := newFixture(t)
	f.env.WriteSources(map[string]string{"A.java": "a", "B.java": "b", "C.java": "c"})
	f.java.Classes["A.java"] = testutil.Class{Uses: []string{"B"}}
	require.Equal(t, compiler.OK, f.build())

	f.env.WriteSources(map[string]string{"B.java": "b2"})
	f.java.Classes["B.java"] = testutil.Class{API: "v2"}

	require.Equal(t, compiler.OK, f.build())
	assert.Equal(t, [][]types.NodeSource{srcs("B.java"), srcs("A.java")}, f.calls())
}

func TestBuild_BodyOnlyChangeDoesNotSpread(t *testing.T) {
	f := newFixture(t)
	f.env.WriteSources(map[string]string{"A.java": "a", "B.java": "b", "C.java": "c"})
	f.java.Classes["A.java"] = testutil.Class{Uses: []string{"B"}}
	require.Equal(t, compiler.OK, f.build())

	f.env.WriteSources(map[string]string{"B.java": "b2"})

	require.Equal(t, compiler.OK, f.build())
	assert.Equal(t, [][]types.NodeSource{srcs("B.java")}, f.calls())
}

func TestBuild_ModuleDescriptorEscalates(t *testing.T) {
	f := newFixture(t)
	f.env.WriteSources(map[string]string{
		"api/Service.java": "s",
		"impl/Impl.java":   "i",
		"module-info.java": "m",
	})
	f.java.Classes["module-info.java"] = testutil.Class{Uses: []string{"api/Service"}}
	require.Equal(t, compiler.OK, f.build())

	f.env.WriteSources(map[string]string{"api/Service.java": "s2"})
	f.java.Classes["api/Service.java"] = testutil.Class{API: "v2"}

	require.Equal(t, compiler.OK, f.build())
	assert.Equal(t, [][]types.NodeSource{
		srcs("api/Service.java"),
		srcs("api/Service.java", "impl/Impl.java", "module-info.java"),
	}, f.calls())
}

func TestBuild_DeletedSource(t *testing.T) {
	f := newFixture(t)
	f.env.WriteSources(map[string]string{"A.java": "a", "B.java": "b", "C.java": "c"})
	f.java.Classes["A.java"] = testutil.Class{Uses: []string{"B"}}
	require.Equal(t, compiler.OK, f.build())

	f.env.RemoveSource("B.java")

	require.Equal(t, compiler.OK, f.build())
	require.Len(t, f.java.Calls, 1)
	assert.Equal(t, srcs("A.java"), f.java.Calls[0].ToCompile)
	assert.Equal(t, srcs("B.java"), f.java.Calls[0].ToDelete)
	assert.Equal(t, map[string]string{"A.class": "A.java@v1", "C.class": "C.java@v1"}, f.env.Output())

	require.Equal(t, compiler.OK, f.build())
	assert.Empty(t, f.java.Calls)
}

func TestBuild_FirstRoundErrorRetriedQuietly(t *testing.T) {
	f := newFixture(t)
	f.env.WriteSources(map[string]string{"A.java": "a", "B.java": "b"})
	f.java.Classes["A.java"] = testutil.Class{Uses: []string{"B"}}
	require.Equal(t, compiler.OK, f.build())

	f.env.WriteSources(map[string]string{"B.java": "b2"})
	f.java.Classes["B.java"] = testutil.Class{API: "v2"}
	f.java.OnCompile = func(call int, c testutil.CompileCall, sink diagnostics.Sink) *compiler.ExitCode {
		if call == 1 {
			sink.Report(diagnostics.Message{Kind: diagnostics.Error, Text: "A uses stale B", Source: "A.java", Line: 1})
			return testutil.Code(compiler.Error)
		}
		return nil
	}

	require.Equal(t, compiler.OK, f.build())
	assert.Equal(t, [][]types.NodeSource{srcs("B.java"), srcs("A.java", "B.java")}, f.calls())
	assert.Empty(t, f.reporter.Messages(), "recovered diagnostics are discarded")
}

func TestBuild_TerminalErrorReportedAndRetriedNextBuild(t *testing.T) {
	f := newFixture(t)
	f.env.WriteSources(map[string]string{"A.java": "a", "B.java": "b"})
	require.Equal(t, compiler.OK, f.build())

	f.env.WriteSources(map[string]string{"A.java": "a2"})
	f.java.OnCompile = func(int, testutil.CompileCall, diagnostics.Sink) *compiler.ExitCode {
		return testutil.Code(compiler.Error)
	}

	require.Equal(t, compiler.Error, f.build())
	assert.Equal(t, [][]types.NodeSource{srcs("A.java")}, f.calls())
	msgs := f.reporter.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, diagnostics.Error, msgs[0].Kind)
	assert.Equal(t, "java completed with errors", msgs[0].Text)

	f.java.OnCompile = nil
	require.Equal(t, compiler.OK, f.build())
	assert.Equal(t, [][]types.NodeSource{srcs("A.java")}, f.calls(), "failed source stays dirty")
	assert.Equal(t, "A.java@v1", f.env.Output()["A.class"])
}

func TestBuild_ErrorStopsLaterCompilers(t *testing.T) {
	f := newFixture(t)
	kotlin := testutil.NewScriptedRunner("kotlin", ".kt")
	f.builder = builder.New(builder.Options{
		Config:   f.cfg,
		Registry: compiler.NewRegistry(f.java, kotlin),
		FS:       f.env.FS,
	})
	f.env.WriteSources(map[string]string{"A.java": "a", "K.kt": "k"})
	f.java.OnCompile = func(int, testutil.CompileCall, diagnostics.Sink) *compiler.ExitCode {
		return testutil.Code(compiler.Error)
	}

	require.Equal(t, compiler.Error, f.build())
	assert.Empty(t, kotlin.Calls)
}

func TestBuild_CancelAbortsImmediately(t *testing.T) {
	f := newFixture(t)
	kotlin := testutil.NewScriptedRunner("kotlin", ".kt")
	f.builder = builder.New(builder.Options{
		Config:   f.cfg,
		Registry: compiler.NewRegistry(f.java, kotlin),
		FS:       f.env.FS,
	})
	f.env.WriteSources(map[string]string{"A.java": "a", "K.kt": "k"})
	f.java.OnCompile = func(int, testutil.CompileCall, diagnostics.Sink) *compiler.ExitCode {
		return testutil.Code(compiler.Cancel)
	}

	require.Equal(t, compiler.Cancel, f.build())
	assert.Empty(t, kotlin.Calls)

	f.java.OnCompile = nil
	require.Equal(t, compiler.OK, f.build())
	assert.Equal(t, [][]types.NodeSource{srcs("A.java")}, f.calls())
	assert.Len(t, kotlin.Calls, 1)
}

func TestBuild_CanceledContext(t *testing.T) {
	f := newFixture(t)
	f.env.WriteSources(map[string]string{"A.java": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, compiler.Cancel, f.builder.Build(ctx, f.context()))
	assert.Empty(t, f.java.Calls)
}

func TestBuild_PanicBecomesError(t *testing.T) {
	f := newFixture(t)
	f.env.WriteSources(map[string]string{"A.java": "a"})
	f.java.OnCompile = func(int, testutil.CompileCall, diagnostics.Sink) *compiler.ExitCode {
		panic("boom")
	}

	require.Equal(t, compiler.Error, f.build())
	msgs := f.reporter.Messages()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1].Text, "internal error: boom")

	f.java.OnCompile = nil
	require.Equal(t, compiler.OK, f.build())
	assert.Equal(t, [][]types.NodeSource{srcs("A.java")}, f.calls())
}

func TestBuild_FullRecompileTriggers(t *testing.T) {
	tests := []struct {
		name   string
		change func(f *fixture)
	}{
		{name: "rebuild requested", change: func(f *fixture) { f.rebuild = true }},
		{name: "flags changed", change: func(f *fixture) { f.args = []string{"-g"} }},
		{name: "corrupt state", change: func(f *fixture) {
			p, err := paths.New(f.env.DataDir, f.cfg.Layout())
			require.NoError(f.t, err)
			require.NoError(f.t, os.WriteFile(p.StateFile(), []byte("garbage"), 0644))
		}},
		{name: "output deleted", change: func(f *fixture) {
			require.NoError(f.t, os.Remove(f.env.OutputPath))
			p, err := paths.New(f.env.DataDir, f.cfg.Layout())
			require.NoError(f.t, err)
			require.NoError(f.t, os.RemoveAll(p.BackupDir()))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.env.WriteSources(map[string]string{"A.java": "a", "B.java": "b"})
			require.Equal(t, compiler.OK, f.build())

			tt.change(f)

			require.Equal(t, compiler.OK, f.build())
			assert.Equal(t, [][]types.NodeSource{srcs("A.java", "B.java")}, f.calls())
		})
	}
}

func TestBuild_LibraryChangeExpandsScope(t *testing.T) {
	f := newFixture(t)
	lib := f.env.WriteLibrary("util-abi.jar", map[string]string{
		"lib/Util.class":  "u1",
		"lib/Other.class": "o1",
	})
	f.libs = []string{lib}
	f.env.WriteSources(map[string]string{"A.java": "a", "B.java": "b", "C.java": "c"})
	f.java.Classes["A.java"] = testutil.Class{Uses: []string{"lib/Util"}}
	f.java.Classes["B.java"] = testutil.Class{Uses: []string{"lib/Other"}}
	require.Equal(t, compiler.OK, f.build())

	f.env.WriteLibrary("util-abi.jar", map[string]string{
		"lib/Util.class":  "u2",
		"lib/Other.class": "o1",
	})

	require.Equal(t, compiler.OK, f.build())
	assert.Equal(t, [][]types.NodeSource{srcs("A.java")}, f.calls())
}

func TestBuild_UntrackedLibraryIgnored(t *testing.T) {
	f := newFixture(t)
	lib := f.env.WriteLibrary("util.jar", map[string]string{"lib/Util.class": "u1"})
	f.libs = []string{lib}
	f.env.WriteSources(map[string]string{"A.java": "a"})
	f.java.Classes["A.java"] = testutil.Class{Uses: []string{"lib/Util"}}
	require.Equal(t, compiler.OK, f.build())

	f.env.WriteLibrary("util.jar", map[string]string{"lib/Util.class": "u2"})

	require.Equal(t, compiler.OK, f.build())
	assert.Empty(t, f.java.Calls)
}

func TestBuild_MissingLibraryBackupRecompilesAll(t *testing.T) {
	f := newFixture(t)
	lib := f.env.WriteLibrary("util-abi.jar", map[string]string{"lib/Util.class": "u1"})
	f.libs = []string{lib}
	f.env.WriteSources(map[string]string{"A.java": "a", "B.java": "b"})
	require.Equal(t, compiler.OK, f.build())

	p, err := paths.New(f.env.DataDir, f.cfg.Layout())
	require.NoError(t, err)
	backup := storage.NewBackup(f.env.FS, p.BackupDir(), nil)
	require.NoError(t, os.Remove(backup.PathFor(lib)))
	f.env.WriteLibrary("util-abi.jar", map[string]string{"lib/Util.class": "u2"})

	require.Equal(t, compiler.OK, f.build())
	assert.Equal(t, [][]types.NodeSource{srcs("A.java", "B.java")}, f.calls())
	assert.Equal(t, 1, f.reporter.Count(diagnostics.Warning))
}

func TestBuild_LibraryRewrittenInPlace(t *testing.T) {
	f := newFixture(t)
	lib := f.env.WriteLibrary("util-abi.jar", map[string]string{"lib/Util.class": "u1"})
	f.libs = []string{lib}
	f.env.WriteSources(map[string]string{"A.java": "a", "B.java": "b", "C.java": "c"})
	f.java.Classes["A.java"] = testutil.Class{Uses: []string{"lib/Util"}}
	require.Equal(t, compiler.OK, f.build())

	// same inode as a linked backup
	data := testutil.ArchiveBytes(t, map[string]string{"lib/Util.class": "u2-changed"})
	require.NoError(t, os.WriteFile(lib, data, 0644))

	require.Equal(t, compiler.OK, f.build())
	require.NotEmpty(t, f.calls())
	assert.Contains(t, f.calls()[0], types.NodeSource("A.java"))
}

func TestBuild_BackupRoundTrip(t *testing.T) {
	f := newFixture(t)
	lib := f.env.WriteLibrary("util-abi.jar", map[string]string{"lib/Util.class": "u1"})
	plain := f.env.WriteLibrary("plain.jar", map[string]string{"lib/Plain.class": "p1"})
	f.libs = []string{lib, plain}
	f.env.WriteSources(map[string]string{"A.java": "a"})
	require.Equal(t, compiler.OK, f.build())

	p, err := paths.New(f.env.DataDir, f.cfg.Layout())
	require.NoError(t, err)
	backup := storage.NewBackup(f.env.FS, p.BackupDir(), nil)
	for _, path := range []string{lib, plain, f.env.OutputPath} {
		want, err := os.ReadFile(path)
		require.NoError(t, err)
		got, err := os.ReadFile(backup.PathFor(path))
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
}

func TestBuild_ABIOutput(t *testing.T) {
	f := newFixture(t)
	f.env.WriteSources(map[string]string{"A.java": "a"})
	bc := f.context()
	bc.ABIOutputPath = f.env.ABIOutputPath

	require.Equal(t, compiler.OK, f.builder.Build(context.Background(), bc))
	_, err := os.Stat(f.env.ABIOutputPath)
	assert.NoError(t, err, "ABI archive written even when empty")
}

func TestClean(t *testing.T) {
	f := newFixture(t)
	f.env.WriteSources(map[string]string{"A.java": "a"})
	require.Equal(t, compiler.OK, f.build())

	require.NoError(t, f.builder.Clean(f.context()))

	_, err := os.Stat(f.env.OutputPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(f.env.DataDir)
	assert.True(t, os.IsNotExist(err))

	require.Equal(t, compiler.OK, f.build())
	assert.Equal(t, [][]types.NodeSource{srcs("A.java")}, f.calls())
}
