package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestStartSpanWithoutExporter(t *testing.T) {
	shutdown, err := InitTracing("none", "test")
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	defer shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), "unit", attribute.String("k", "v"))
	defer span.End()
	if ctx == nil {
		t.Fatalf("expected a context")
	}
	if span.SpanContext().IsSampled() {
		t.Errorf("noop spans should not be sampled")
	}

	// Later calls keep the first provider.
	if _, err := InitTracing("bogus", "test"); err != nil {
		t.Errorf("second InitTracing should be a no-op, got %v", err)
	}
}

func TestBuildExporter(t *testing.T) {
	if _, err := buildExporter("stdout"); err != nil {
		t.Errorf("stdout exporter: %v", err)
	}
	if _, err := buildExporter("zipkin"); err == nil {
		t.Errorf("expected an error for an unknown exporter")
	}
}
