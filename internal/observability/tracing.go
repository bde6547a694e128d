package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/tileworld-simulator/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Tracing environment variables.
const (
	EnvTracingEnabled     = "TILEWORLD_TRACING_ENABLED"
	EnvTracingExporter    = "TILEWORLD_TRACING_EXPORTER"
	EnvTracingServiceName = "TILEWORLD_TRACING_SERVICE_NAME"
	EnvTracingSampleRatio = "TILEWORLD_TRACING_SAMPLE_RATIO"
	EnvOTLPEndpoint       = "TILEWORLD_OTLP_ENDPOINT"
)

// ErrInvalidTracingConfig wraps every tracing configuration problem.
var ErrInvalidTracingConfig = errors.New("invalid tracing config")

// Exporter names a span exporter.
type Exporter string

const (
	ExporterStdout Exporter = "stdout"
	ExporterOTLP   Exporter = "otlp"
)

const defaultOTLPEndpoint = "localhost:4317"

// TracingConfig governs how tick tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    Exporter
	Endpoint    string    // OTLP collector address
	SampleRatio float64   // fraction of root tick spans kept, in [0, 1]
	Writer      io.Writer // stdout exporter destination, defaults to os.Stderr
}

// DefaultTracingConfig is a disabled stdout exporter sampling every tick.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "tileworld-simulator",
		Exporter:    ExporterStdout,
		SampleRatio: 1,
	}
}

// TracingConfigFromEnv overlays the TILEWORLD_TRACING_* variables on the
// defaults. Empty variables count as unset; malformed ones are errors.
func TracingConfigFromEnv() (TracingConfig, error) {
	cfg := DefaultTracingConfig()
	if v := os.Getenv(EnvTracingEnabled); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("%w: %s=%q", ErrInvalidTracingConfig, EnvTracingEnabled, v)
		}
		cfg.Enabled = b
	}
	if v := os.Getenv(EnvTracingExporter); v != "" {
		cfg.Exporter = Exporter(strings.ToLower(v))
	}
	if v := os.Getenv(EnvTracingServiceName); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv(EnvTracingSampleRatio); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("%w: %s=%q", ErrInvalidTracingConfig, EnvTracingSampleRatio, v)
		}
		cfg.SampleRatio = r
	}
	cfg.Endpoint = os.Getenv(EnvOTLPEndpoint)

	if err := cfg.Validate(); err != nil {
		return TracingConfig{}, err
	}
	return cfg, nil
}

// Validate checks the exporter and sample ratio.
func (c TracingConfig) Validate() error {
	switch c.Exporter {
	case ExporterStdout, ExporterOTLP:
	default:
		return fmt.Errorf("%w: unsupported exporter %q", ErrInvalidTracingConfig, c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("%w: sample ratio %v not in [0, 1]", ErrInvalidTracingConfig, c.SampleRatio)
	}
	return nil
}

// sampler keeps child spans with their parent and samples roots by ratio.
func (c TracingConfig) sampler() sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case c.SampleRatio >= 1:
		root = sdktrace.AlwaysSample()
	case c.SampleRatio <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(c.SampleRatio)
	}
	return sdktrace.ParentBased(root)
}

// InitTracing installs the global tracer provider and propagators described
// by cfg. A run_id carried by ctx becomes a resource attribute so every span
// of one simulation run can be found together. The returned function flushes
// and stops the provider.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "tileworld"),
	}
	if id := logging.RunIDFromContext(ctx); id != "" {
		attrs = append(attrs, attribute.String("tileworld.run_id", id))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(cfg.sampler()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", string(cfg.Exporter)),
		logging.String("service_name", cfg.ServiceName),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterOTLP:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		client := otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
		return otlptrace.New(ctx, client)
	default:
		// stderr keeps spans out of the JSON log stream on stdout.
		out := cfg.Writer
		if out == nil {
			out = os.Stderr
		}
		return stdouttrace.New(
			stdouttrace.WithWriter(out),
			stdouttrace.WithoutTimestamps(),
		)
	}
}

// ShutdownWithTimeout invokes shutdown with a five second bound, logging
// rather than returning any error.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
