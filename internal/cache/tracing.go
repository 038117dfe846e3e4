package cache

import (
	"context"
	"errors"
	"net"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/cargoyard/cargoyard/internal/telemetry"
)

// tracingHook opens a client span per Redis command or pipeline. Keys and
// values are never recorded.
type tracingHook struct {
	tracer trace.Tracer
}

func newTracingHook() *tracingHook {
	return &tracingHook{tracer: telemetry.Tracer("redis")}
}

func (h *tracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *tracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := h.start(ctx, "redis "+cmd.Name())
		defer span.End()

		err := next(ctx, cmd)
		h.finish(span, err)
		return err
	}
}

func (h *tracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := h.start(ctx, "redis pipeline")
		defer span.End()

		err := next(ctx, cmds)
		h.finish(span, err)
		return err
	}
}

func (h *tracingHook) start(ctx context.Context, name string) (context.Context, trace.Span) {
	return h.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(semconv.DBSystemRedis),
	)
}

func (h *tracingHook) finish(span trace.Span, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
