package otel_test

import (
	"context"
	"testing"

	"github.com/baskuit/engine/internal/platform/otel"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		enabled  string
	}{
		{name: "endpoint empty"},
		{name: "explicitly disabled", endpoint: "http://localhost:4318", enabled: "false"},
		// A non-routable address so nothing is exported.
		{name: "endpoint set", endpoint: "http://192.0.2.1:4318"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(otel.EnvEndpoint, tt.endpoint)
			t.Setenv(otel.EnvEnabled, tt.enabled)

			shutdown, err := otel.Setup(context.Background(), "integration")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown error: %v", err)
			}
		})
	}
}

func TestSetup_NoopShutdownIgnoresCancelledContext(t *testing.T) {
	t.Setenv(otel.EnvEndpoint, "")
	t.Setenv(otel.EnvEnabled, "")

	shutdown, err := otel.Setup(context.Background(), "fuzz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should not error: %v", err)
	}
}
