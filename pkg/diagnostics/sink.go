package diagnostics

import (
	"sync"
)

// Sink receives diagnostics
type Sink interface {
	Report(m Message)
	// HasErrors reports whether an Error message went through this sink
	HasErrors() bool
}

// Reporter collects every message of a build and forwards it to an
// optional callback
type Reporter struct {
	mu       sync.Mutex
	messages []Message
	counts   map[Kind]int
	onReport func(Message)
}

// NewReporter creates a reporter. onReport may be nil.
func NewReporter(onReport func(Message)) *Reporter {
	return &Reporter{counts: make(map[Kind]int), onReport: onReport}
}

// Report implements Sink
func (r *Reporter) Report(m Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.counts[m.Kind]++
	cb := r.onReport
	r.mu.Unlock()
	if cb != nil {
		cb(m)
	}
}

// HasErrors implements Sink
func (r *Reporter) HasErrors() bool {
	return r.Count(Error) > 0
}

// Count returns the number of messages of kind
func (r *Reporter) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}

// Messages returns a copy of all messages reported so far
func (r *Reporter) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// BufferingSink holds messages until they are flushed or discarded
type BufferingSink struct {
	target    Sink
	buffered  []Message
	hasErrors bool
}

// NewBufferingSink buffers for target
func NewBufferingSink(target Sink) *BufferingSink {
	return &BufferingSink{target: target}
}

// Report implements Sink
func (b *BufferingSink) Report(m Message) {
	if m.Kind == Error {
		b.hasErrors = true
	}
	b.buffered = append(b.buffered, m)
}

// HasErrors implements Sink
func (b *BufferingSink) HasErrors() bool {
	return b.hasErrors
}

// Len returns the number of buffered messages
func (b *BufferingSink) Len() int {
	return len(b.buffered)
}

// Flush forwards buffered messages to the target in order
func (b *BufferingSink) Flush() {
	for _, m := range b.buffered {
		b.target.Report(m)
	}
	b.buffered = nil
}

// Discard drops buffered messages
func (b *BufferingSink) Discard() {
	b.buffered = nil
}

// PassThroughSink forwards messages immediately and remembers whether any
// of them was an error
type PassThroughSink struct {
	target    Sink
	hasErrors bool
}

// NewPassThroughSink forwards to target
func NewPassThroughSink(target Sink) *PassThroughSink {
	return &PassThroughSink{target: target}
}

// Report implements Sink
func (p *PassThroughSink) Report(m Message) {
	if m.Kind == Error {
		p.hasErrors = true
	}
	p.target.Report(m)
}

// HasErrors implements Sink
func (p *PassThroughSink) HasErrors() bool {
	return p.hasErrors
}
