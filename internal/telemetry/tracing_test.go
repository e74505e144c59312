package telemetry

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TraceConfig{Exporter: "none"}, zap.NewNop())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupTracingStdout(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TraceConfig{Exporter: "stdout", ServiceName: "mediaflow-test"}, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupTracingRejectsBadConfig(t *testing.T) {
	if _, err := SetupTracing(context.Background(), TraceConfig{Exporter: "jaeger"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
	if _, err := SetupTracing(context.Background(), TraceConfig{Exporter: "otlp"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for otlp without endpoint")
	}
}

func TestSamplerRatio(t *testing.T) {
	if got := sampler(0).Description(); got != sampler(1).Description() {
		t.Fatalf("expected 0 and 1 to sample everything, got %q and %q", got, sampler(1).Description())
	}
	if got := sampler(0.25).Description(); !strings.Contains(got, "TraceIDRatioBased{0.25}") {
		t.Fatalf("unexpected sampler %q", got)
	}
}
