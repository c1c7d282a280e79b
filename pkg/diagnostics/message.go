package diagnostics

import (
	"fmt"
	"strconv"
)

// Kind is the severity of a message
type Kind int

const (
	Error Kind = iota
	Warning
	Info
	Stdout
)

// String returns the lower-case name of the kind
func (k Kind) String() string {
	switch k {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Stdout:
		return "stdout"
	default:
		return "unknown"
	}
}

// Message is one diagnostic
type Message struct {
	Kind Kind
	Text string
	// Source is the path the message refers to, if any
	Source string
	// Line is 1-based, 0 when unknown
	Line int
	// Origin names the compiler or component that produced the message
	Origin string
}

// String formats the message as "source:line: kind: text"
func (m Message) String() string {
	prefix := ""
	if m.Source != "" {
		prefix = m.Source
		if m.Line > 0 {
			prefix += ":" + strconv.Itoa(m.Line)
		}
		prefix += ": "
	}
	return prefix + m.Kind.String() + ": " + m.Text
}

// Errorf creates an Error message
func Errorf(origin, format string, args ...interface{}) Message {
	return Message{Kind: Error, Origin: origin, Text: fmt.Sprintf(format, args...)}
}

// Warningf creates a Warning message
func Warningf(origin, format string, args ...interface{}) Message {
	return Message{Kind: Warning, Origin: origin, Text: fmt.Sprintf(format, args...)}
}

// Infof creates an Info message
func Infof(origin, format string, args ...interface{}) Message {
	return Message{Kind: Info, Origin: origin, Text: fmt.Sprintf(format, args...)}
}
