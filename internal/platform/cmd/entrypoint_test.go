package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"

	gootel "go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apperrors "github.com/baskuit/engine/internal/platform/errors"
)

type testConfig struct {
	LogDir  string `env:"PKMN_CMD_TEST_LOG_DIR" envDefault:"logs"`
	Verbose bool   `env:"PKMN_CMD_TEST_VERBOSE"`
}

func TestParseConfigFromArgsReadsEnvAndFlags(t *testing.T) {
	t.Setenv("PKMN_CMD_TEST_LOG_DIR", "env-logs")
	t.Setenv("PKMN_CMD_TEST_VERBOSE", "true")

	cfg := testConfig{}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.StringVar(&cfg.LogDir, "log-dir", "", "log dir")
	if err := ParseConfigFromArgs(&cfg, fs, []string{"-log-dir", "flag-logs"}); err != nil {
		t.Fatalf("parse config and args: %v", err)
	}
	if cfg.LogDir != "flag-logs" {
		t.Fatalf("expected flag log dir, got %q", cfg.LogDir)
	}
	if !cfg.Verbose {
		t.Fatal("expected env verbose")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
	var cfg *testConfig
	if err := ParseConfig(cfg); err == nil {
		t.Fatal("expected parse config to reject nil target")
	}
}

func TestRunWithTelemetry(t *testing.T) {
	t.Setenv("PKMN_OTEL_ENDPOINT", "")

	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceFuzz, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
	boom := errors.New("boom")
	err := RunWithTelemetry(context.Background(), ServiceIntegration, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected run error, got %v", err)
	}
}

func TestRunWithTelemetryRecordsExitCode(t *testing.T) {
	t.Setenv("PKMN_OTEL_ENDPOINT", "")
	recorder := tracetest.NewSpanRecorder()
	previous := gootel.GetTracerProvider()
	gootel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { gootel.SetTracerProvider(previous) })

	err := RunWithTelemetry(context.Background(), ServiceIntegration, func(context.Context) error {
		return apperrors.New(apperrors.CodeDivergence, "log mismatch")
	})
	if apperrors.CodeOf(err) != apperrors.CodeDivergence {
		t.Fatalf("error = %v", err)
	}
	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != ServiceIntegration {
		t.Fatalf("spans = %v", spans)
	}
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["exit_code"] != "1" || attrs["error_code"] != "DIVERGENCE" {
		t.Fatalf("attributes = %v", attrs)
	}
}
