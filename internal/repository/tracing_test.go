package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOperation(t *testing.T) {
	tests := []struct{ sql, want string }{
		{"\n\t\tSELECT id FROM users", "SELECT"},
		{"update users set name=$1", "UPDATE"},
		{"", "query"},
	}
	for _, tt := range tests {
		if got := operation(tt.sql); got != tt.want {
			t.Errorf("operation(%q) = %q, want %q", tt.sql, got, tt.want)
		}
	}
}

func TestWithPoolSize(t *testing.T) {
	config, err := pgxpool.ParseConfig("postgres://cargoyard@localhost:5432/cargoyard")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	config.MaxConns, config.MinConns = 10, 2

	WithPoolSize(0, 0)(config)
	if config.MaxConns != 10 || config.MinConns != 2 {
		t.Errorf("zero values changed pool to %d/%d", config.MaxConns, config.MinConns)
	}

	WithPoolSize(25, 5)(config)
	if config.MaxConns != 25 || config.MinConns != 5 {
		t.Errorf("pool = %d/%d, want 25/5", config.MaxConns, config.MinConns)
	}
}

func TestQueryTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := &queryTracer{tracer: provider.Tracer("test")}

	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: pgx.ErrNoRows})

	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "INSERT INTO users"})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("boom")})

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name() != "postgres SELECT" || spans[0].Status().Code == codes.Error {
		t.Errorf("no-rows span = %q %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Name() != "postgres INSERT" || spans[1].Status().Code != codes.Error {
		t.Errorf("failed span = %q %v", spans[1].Name(), spans[1].Status())
	}
}
