package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// A schedule save traced by otelmux and the archive job span it starts must
// share one trace, continuing the caller's traceparent when there is one.
func TestScheduleSaveTrace(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	r := mux.NewRouter()
	r.Use(otelmux.Middleware(ServerServiceName))
	r.HandleFunc("/api/v1/schedule", func(w http.ResponseWriter, r *http.Request) {
		_, end := StartJobSpan(r.Context(), "schedule_revision", "job-1")
		end(nil)
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodPut)

	const callerTrace = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		traceParent string
	}{
		{name: "new trace"},
		{name: "continues caller trace", traceParent: "00-" + callerTrace + "-00f067aa0ba902b7-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			req := httptest.NewRequest(http.MethodPut, "/api/v1/schedule", nil)
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			if err := tp.ForceFlush(context.Background()); err != nil {
				t.Fatalf("ForceFlush: %v", err)
			}

			var server, job *tracetest.SpanStub
			spans := exporter.GetSpans()
			for i := range spans {
				switch spans[i].SpanKind {
				case trace.SpanKindServer:
					server = &spans[i]
				case trace.SpanKindConsumer:
					job = &spans[i]
				}
			}
			if server == nil || job == nil {
				t.Fatalf("got %d spans, want a server span and a job span", len(spans))
			}

			if job.SpanContext.TraceID() != server.SpanContext.TraceID() {
				t.Error("job span is not in the request trace")
			}
			if job.Parent.SpanID() != server.SpanContext.SpanID() {
				t.Error("job span is not a child of the request span")
			}
			if tt.traceParent != "" && server.SpanContext.TraceID().String() != callerTrace {
				t.Errorf("trace id = %s, want %s", server.SpanContext.TraceID(), callerTrace)
			}
		})
	}
}
