package trace

import "context"

// Multi fans a single span out to several Tracers: one span is created
// via the shared NewSpan primitive, and every backend's EndSpan records
// it independently (JSON file, slog, Prometheus metrics, ...).
type Multi struct {
	backends []Tracer
}

// NewMulti creates a Tracer that drives every backend on each span.
func NewMulti(backends ...Tracer) *Multi {
	return &Multi{backends: backends}
}

// StartSpan begins one shared span and links it into ctx; every
// backend's EndSpan later records this same span.
func (m *Multi) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	return NewSpan(ctx, name)
}

// EndSpan completes the span on every backend.
func (m *Multi) EndSpan(span *Span) {
	for _, b := range m.backends {
		b.EndSpan(span)
	}
}
