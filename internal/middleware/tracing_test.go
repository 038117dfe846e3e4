package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestTracing_NamesSpanAfterRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(Tracing(provider.Tracer("test")))
	r.Use(Logger(logger, nil))
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/ferris", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/boom", nil))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	for _, s := range spans {
		if s.Name() != "GET /users/{id}" {
			t.Errorf("span name = %q", s.Name())
		}
		if s.SpanKind() != trace.SpanKindServer {
			t.Errorf("span kind = %v", s.SpanKind())
		}
	}
	if spans[0].Status().Code == codes.Error {
		t.Error("200 response marked as error")
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("500 response status = %v, want Error", spans[1].Status().Code)
	}

	wantTrace := spans[0].SpanContext().TraceID().String()
	if !strings.Contains(buf.String(), `"trace_id":"`+wantTrace+`"`) {
		t.Errorf("log output missing trace id %s: %s", wantTrace, buf.String())
	}
}

func TestLogger_FallsBackToTraceHeader(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceIDHeader, "upstream-trace")
	RequestID(Logger(logger, nil)(okHandler)).ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), `"trace_id":"upstream-trace"`) {
		t.Errorf("log output = %s", buf.String())
	}
}
