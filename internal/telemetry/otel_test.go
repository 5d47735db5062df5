package telemetry

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracer(t *testing.T) {
	for _, service := range []string{ServerServiceName, WorkerServiceName} {
		t.Run(service, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// The exporter connects lazily, so no collector is needed
			tp, err := InitTracer(ctx, service, "localhost:4318")
			if err != nil {
				t.Fatalf("InitTracer() error = %v", err)
			}
			defer func() {
				if err := Shutdown(ctx, tp); err != nil {
					t.Errorf("Shutdown() error = %v", err)
				}
			}()

			if otel.GetTracerProvider() != trace.TracerProvider(tp) {
				t.Error("global tracer provider was not replaced")
			}
			fields := otel.GetTextMapPropagator().Fields()
			for _, want := range []string{"traceparent", "baggage"} {
				if !slices.Contains(fields, want) {
					t.Errorf("propagator fields %v missing %q", fields, want)
				}
			}
		})
	}
}

func TestShutdown_NilProvider(t *testing.T) {
	if err := Shutdown(context.Background(), nil); err != nil {
		t.Errorf("Shutdown(nil) = %v, want nil", err)
	}
}

func TestStartJobSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
	}{
		{name: "success", wantStatus: codes.Unset},
		{name: "failure", err: errors.New("archive failed"), wantStatus: codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			_, end := StartJobSpan(context.Background(), "schedule_revision", "job-1")
			end(tt.err)

			spans := exporter.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if spans[0].Name != "job schedule_revision" {
				t.Errorf("span name = %q", spans[0].Name)
			}
			if spans[0].Status.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", spans[0].Status.Code, tt.wantStatus)
			}
		})
	}
}
