package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/incr/pkg/builder"
	"github.com/arthur-debert/incr/pkg/types"
	"github.com/charmbracelet/glamour"
)

// PlanMarkdown renders a plan as a Markdown report
func PlanMarkdown(p *builder.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Plan for `%s`\n\n", p.Target)
	switch {
	case p.RecompileAll:
		fmt.Fprintf(&b, "Full recompile (%s).\n\n", p.Reason)
	case len(p.Modified) == 0 && len(p.Deleted) == 0:
		b.WriteString("Up to date, nothing to compile.\n")
		return b.String()
	default:
		fmt.Fprintf(&b, "Incremental: %d to compile, %d deleted.\n\n", len(p.Modified), len(p.Deleted))
	}

	for _, c := range p.PerCompiler {
		fmt.Fprintf(&b, "## %s (%d)\n\n", c.Compiler, len(c.Sources))
		writeList(&b, c.Sources)
	}
	if len(p.Deleted) > 0 {
		fmt.Fprintf(&b, "## deleted (%d)\n\n", len(p.Deleted))
		writeList(&b, p.Deleted)
	}
	return b.String()
}

func writeList(b *strings.Builder, sources []types.NodeSource) {
	for _, src := range sources {
		fmt.Fprintf(b, "- `%s`\n", src)
	}
	b.WriteString("\n")
}

// RenderPlan writes p to w in format. Terminal output is rendered with
// glamour and falls back to the Markdown text when rendering fails.
func RenderPlan(w io.Writer, p *builder.Plan, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case FormatTerminal:
		md := PlanMarkdown(p)
		out, err := renderMarkdown(md)
		if err != nil {
			out = md
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		_, err := io.WriteString(w, PlanMarkdown(p))
		return err
	}
}

func renderMarkdown(md string) (string, error) {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return "", err
	}
	return renderer.Render(md)
}
