package telemetry

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Capturer reports errors that were handled but should still be seen.
type Capturer interface {
	Capture(ctx context.Context, err error, attrs ...any) string
}

// Collector records errors on the active span and logs them under a fresh
// event id.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{logger: logger.With("component", "telemetry.collector")}
}

// Capture records err and returns its event id. attrs are slog key/value
// pairs added to the log entry.
func (c *Collector) Capture(ctx context.Context, err error, attrs ...any) string {
	if err == nil {
		return ""
	}
	eventID := ulid.Make().String()

	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(eventIDKey.String(eventID)))
	span.SetStatus(codes.Error, err.Error())

	args := []any{"event_id", eventID, "error", err}
	if sc := span.SpanContext(); sc.IsValid() {
		args = append(args, "trace_id", sc.TraceID().String())
	}
	args = append(args, attrs...)
	c.logger.ErrorContext(ctx, "captured error", args...)

	return eventID
}
