// pkg/ui/ui_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Verify format parsing, diagnostic printing and plan reports

package ui_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/arthur-debert/incr/pkg/builder"
	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/arthur-debert/incr/pkg/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected ui.Format
		wantErr  bool
	}{
		{input: "", expected: ui.FormatAuto},
		{input: "auto", expected: ui.FormatAuto},
		{input: "TERM", expected: ui.FormatTerminal},
		{input: "plain", expected: ui.FormatText},
		{input: "json", expected: ui.FormatJSON},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ui.ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.NotEqual(t, "unknown", got.String())
		})
	}
	assert.Equal(t, "unknown", ui.Format(42).String())
}

func TestResolve_KeepsExplicitFormat(t *testing.T) {
	assert.Equal(t, ui.FormatJSON, ui.Resolve(ui.FormatJSON, nil))
}

func TestDiagnosticPrinter_Text(t *testing.T) {
	var buf bytes.Buffer
	p := ui.NewDiagnosticPrinter(&buf, ui.FormatText)

	p.Print(diagnostics.Message{Kind: diagnostics.Error, Text: "missing symbol", Source: "A.java", Line: 3, Origin: "javac"})
	p.Print(diagnostics.Message{Kind: diagnostics.Stdout, Text: "Note: recompile with -Xlint"})
	p.Print(diagnostics.Warningf("incr", "slow"))

	assert.Equal(t,
		"A.java:3: error: missing symbol [javac]\n"+
			"Note: recompile with -Xlint\n"+
			"warning: slow [incr]\n",
		buf.String())
}

func TestDiagnosticPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	p := ui.NewDiagnosticPrinter(&buf, ui.FormatJSON)
	p.Print(diagnostics.Message{Kind: diagnostics.Error, Text: "boom", Source: "A.java", Line: 1})

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "error", got["kind"])
	assert.Equal(t, "boom", got["text"])
	assert.Equal(t, "A.java", got["source"])
	assert.NotContains(t, got, "origin")
}

func TestPlanMarkdown(t *testing.T) {
	p := &builder.Plan{
		Target:   "//app:core",
		Modified: []types.NodeSource{"A.java", "app.properties"},
		Deleted:  []types.NodeSource{"B.java"},
		PerCompiler: []builder.CompilerPlan{
			{Compiler: "javac", Sources: []types.NodeSource{"A.java"}},
			{Compiler: "resources", Sources: []types.NodeSource{"app.properties"}},
		},
	}

	md := ui.PlanMarkdown(p)
	assert.Contains(t, md, "# Plan for `//app:core`")
	assert.Contains(t, md, "Incremental: 2 to compile, 1 deleted.")
	assert.Contains(t, md, "## javac (1)\n\n- `A.java`\n")
	assert.Contains(t, md, "## deleted (1)\n\n- `B.java`\n")

	full := ui.PlanMarkdown(&builder.Plan{Target: "t", RecompileAll: true, Reason: "no_output"})
	assert.Contains(t, full, "Full recompile (no_output).")

	idle := ui.PlanMarkdown(&builder.Plan{Target: "t"})
	assert.Contains(t, idle, "Up to date")
}

func TestRenderPlan_JSON(t *testing.T) {
	var buf bytes.Buffer
	p := &builder.Plan{Target: "t", RecompileAll: true, Reason: "rebuild_requested", Modified: []types.NodeSource{"A.java"}}
	require.NoError(t, ui.RenderPlan(&buf, p, ui.FormatJSON))

	var got builder.Plan
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, *p, got)
}

func TestRenderPlan_Text(t *testing.T) {
	var buf bytes.Buffer
	p := &builder.Plan{Target: "t"}
	require.NoError(t, ui.RenderPlan(&buf, p, ui.FormatText))
	assert.Equal(t, ui.PlanMarkdown(p), buf.String())
}
