package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/signalsfoundry/tileworld-simulator/internal/logging"
)

func clearTracingEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		EnvTracingEnabled, EnvTracingExporter, EnvTracingServiceName,
		EnvTracingSampleRatio, EnvOTLPEndpoint,
	} {
		t.Setenv(name, "")
	}
}

func restoreTracerProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestTracingConfigFromEnvDefaults(t *testing.T) {
	clearTracingEnv(t)

	cfg, err := TracingConfigFromEnv()
	if err != nil {
		t.Fatalf("TracingConfigFromEnv() error: %v", err)
	}
	if cfg.Enabled {
		t.Fatalf("Enabled = true, want false")
	}
	if cfg.Exporter != ExporterStdout {
		t.Fatalf("Exporter = %q, want %q", cfg.Exporter, ExporterStdout)
	}
	if cfg.ServiceName != "tileworld-simulator" {
		t.Fatalf("ServiceName = %q, want tileworld-simulator", cfg.ServiceName)
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("SampleRatio = %v, want 1", cfg.SampleRatio)
	}
}

func TestTracingConfigFromEnvOverrides(t *testing.T) {
	clearTracingEnv(t)
	t.Setenv(EnvTracingEnabled, "true")
	t.Setenv(EnvTracingExporter, "OTLP")
	t.Setenv(EnvTracingServiceName, "tileworld-ci")
	t.Setenv(EnvTracingSampleRatio, "0.25")
	t.Setenv(EnvOTLPEndpoint, "collector:4317")

	cfg, err := TracingConfigFromEnv()
	if err != nil {
		t.Fatalf("TracingConfigFromEnv() error: %v", err)
	}
	want := TracingConfig{
		Enabled:     true,
		ServiceName: "tileworld-ci",
		Exporter:    ExporterOTLP,
		Endpoint:    "collector:4317",
		SampleRatio: 0.25,
	}
	if cfg != want {
		t.Fatalf("TracingConfigFromEnv() = %+v, want %+v", cfg, want)
	}
}

func TestTracingConfigFromEnvRejectsMalformed(t *testing.T) {
	cases := map[string][2]string{
		"enabled":  {EnvTracingEnabled, "maybe"},
		"ratio":    {EnvTracingSampleRatio, "most"},
		"range":    {EnvTracingSampleRatio, "1.5"},
		"exporter": {EnvTracingExporter, "zipkin"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearTracingEnv(t)
			t.Setenv(kv[0], kv[1])
			if _, err := TracingConfigFromEnv(); !errors.Is(err, ErrInvalidTracingConfig) {
				t.Fatalf("TracingConfigFromEnv() error = %v, want %v", err, ErrInvalidTracingConfig)
			}
		})
	}
}

func TestSamplerByRatio(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{1, "root:AlwaysOnSampler"},
		{0, "root:AlwaysOffSampler"},
		{0.25, "root:TraceIDRatioBased{0.25}"},
	}
	for _, tc := range cases {
		cfg := DefaultTracingConfig()
		cfg.SampleRatio = tc.ratio
		if got := cfg.sampler().Description(); !strings.Contains(got, tc.want) {
			t.Fatalf("sampler(%v) = %q, want it to contain %q", tc.ratio, got, tc.want)
		}
	}
}

func TestInitTracingDisabled(t *testing.T) {
	restoreTracerProvider(t)

	shutdown, err := InitTracing(context.Background(), DefaultTracingConfig(), nil)
	if err != nil {
		t.Fatalf("InitTracing() error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "world.tick")
	defer span.End()
	if span.IsRecording() {
		t.Fatalf("span recording with tracing disabled")
	}
}

func TestInitTracingExportsTickSpans(t *testing.T) {
	restoreTracerProvider(t)

	var buf bytes.Buffer
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Writer = &buf

	ctx := logging.ContextWithRunID(context.Background(), "run-42")
	shutdown, err := InitTracing(ctx, cfg, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing() error: %v", err)
	}

	_, span := otel.Tracer("test").Start(ctx, "world.tick")
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	out := buf.String()
	if !strings.Contains(out, "world.tick") {
		t.Fatalf("exported spans missing world.tick: %q", out)
	}
	if !strings.Contains(out, "run-42") {
		t.Fatalf("exported spans missing run id resource: %q", out)
	}
}

func TestInitTracingRejectsInvalidConfig(t *testing.T) {
	restoreTracerProvider(t)

	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.SampleRatio = -1
	if _, err := InitTracing(context.Background(), cfg, nil); !errors.Is(err, ErrInvalidTracingConfig) {
		t.Fatalf("InitTracing() error = %v, want %v", err, ErrInvalidTracingConfig)
	}
}
