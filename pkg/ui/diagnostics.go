package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/arthur-debert/incr/pkg/diagnostics"
	"github.com/charmbracelet/lipgloss"
)

var (
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	sourceStyle  = lipgloss.NewStyle().Bold(true)
	originStyle  = lipgloss.NewStyle().Faint(true)
)

// DiagnosticPrinter writes build diagnostics as they are reported. Stdout
// messages are compiler output and are printed verbatim.
type DiagnosticPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
}

// NewDiagnosticPrinter prints to w. FormatAuto must be resolved by the
// caller; it is treated as FormatText.
func NewDiagnosticPrinter(w io.Writer, format Format) *DiagnosticPrinter {
	return &DiagnosticPrinter{w: w, format: format}
}

// Print writes one message
func (p *DiagnosticPrinter) Print(m diagnostics.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.format {
	case FormatJSON:
		data, err := json.Marshal(jsonMessage{
			Kind:   m.Kind.String(),
			Text:   m.Text,
			Source: m.Source,
			Line:   m.Line,
			Origin: m.Origin,
		})
		if err == nil {
			_, _ = fmt.Fprintln(p.w, string(data))
		}
	case FormatTerminal:
		_, _ = fmt.Fprintln(p.w, styled(m))
	default:
		_, _ = fmt.Fprintln(p.w, plain(m))
	}
}

type jsonMessage struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Line   int    `json:"line,omitempty"`
	Origin string `json:"origin,omitempty"`
}

func plain(m diagnostics.Message) string {
	if m.Kind == diagnostics.Stdout {
		return m.Text
	}
	out := m.String()
	if m.Origin != "" {
		out += " [" + m.Origin + "]"
	}
	return out
}

func styled(m diagnostics.Message) string {
	if m.Kind == diagnostics.Stdout {
		return m.Text
	}
	var kind string
	switch m.Kind {
	case diagnostics.Error:
		kind = errorStyle.Render(m.Kind.String())
	case diagnostics.Warning:
		kind = warningStyle.Render(m.Kind.String())
	default:
		kind = infoStyle.Render(m.Kind.String())
	}
	out := kind + ": " + m.Text
	if m.Source != "" {
		loc := m.Source
		if m.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, m.Line)
		}
		out = sourceStyle.Render(loc) + ": " + out
	}
	if m.Origin != "" {
		out += " " + originStyle.Render("["+m.Origin+"]")
	}
	return out
}
