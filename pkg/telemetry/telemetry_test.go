package telemetry

import (
	"context"
	"testing"

	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestNewWithoutEndpointIsNoop(t *testing.T) {
	p, err := New(context.Background(), Config{ServiceName: "its-fabric-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.tp != nil {
		t.Fatalf("expected a nil TracerProvider when Endpoint is empty")
	}

	ctx, end := p.Span(context.Background(), "test-span", oteltrace.SpanKindInternal)
	if ctx == nil {
		t.Fatalf("expected a non-nil context")
	}
	end()

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestBasicAuthHeaderEncoding(t *testing.T) {
	got := basicAuthHeader("alice", "s3cret")
	want := "Basic YWxpY2U6czNjcmV0"
	if got != want {
		t.Fatalf("basicAuthHeader = %q, want %q", got, want)
	}
}
