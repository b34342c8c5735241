package otel

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("AMAYA_OTEL_ENDPOINT", "")
	t.Setenv("AMAYA_OTEL_ENABLED", "")

	shutdown, err := Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("AMAYA_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("AMAYA_OTEL_ENABLED", "false")

	shutdown, err := Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export is attempted before shutdown.
	t.Setenv("AMAYA_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("AMAYA_OTEL_ENABLED", "")
	t.Setenv("AMAYA_OTEL_SAMPLE_RATIO", "0.5")

	shutdown, err := Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSamplerFallsBackToAlwaysSample(t *testing.T) {
	always := sdktrace.AlwaysSample().Description()
	for _, raw := range []string{"", "nope", "-1", "1.5"} {
		if got := sampler(raw).Description(); got != always {
			t.Fatalf("sampler(%q) = %s, want %s", raw, got, always)
		}
	}
	if got := sampler("0.25").Description(); got == always {
		t.Fatal("expected ratio sampler for 0.25")
	}
}
