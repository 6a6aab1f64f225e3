package trace

import (
	"context"
	"log/slog"
	"time"
)

// Slog writes completed spans as structured log records through a
// log/slog.Logger, one attribute per span attribute plus span_id,
// duration and, when set, parent_id; a failed span is logged at Error
// level with an error attribute. Suitable as the human-readable operational log next to a
// machine-readable backend such as Stdout or otel.Exporter.
type Slog struct {
	logger *slog.Logger
}

// NewSlog creates a tracer that logs completed spans through logger.
// A nil logger falls back to slog.Default().
func NewSlog(logger *slog.Logger) *Slog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog{logger: logger}
}

// StartSpan begins a new span linked to any parent span in the context.
func (t *Slog) StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	return NewSpan(ctx, name)
}

// EndSpan records the span end time and logs it at Info (or Error on
// failure) level, with one slog attribute per span attribute.
func (t *Slog) EndSpan(span *Span) {
	span.EndTime = time.Now()

	attrs := make([]any, 0, 4+2*len(span.Attributes))
	attrs = append(attrs,
		slog.String("span_id", span.ID),
		slog.Duration("duration", span.EndTime.Sub(span.StartTime)),
	)
	if span.ParentID != "" {
		attrs = append(attrs, slog.String("parent_id", span.ParentID))
	}
	for k, v := range span.Attributes {
		attrs = append(attrs, slog.String(k, v))
	}

	if span.Status == StatusError {
		attrs = append(attrs, slog.String("error", span.Error))
		t.logger.Error(span.Name, attrs...)
		return
	}
	t.logger.Info(span.Name, attrs...)
}
