package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/railzwaylabs/recon/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const serviceName = "recon"

var ErrUnsupportedProtocol = errors.New("unsupported_otlp_protocol")

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(serviceName + "/" + name)
}

// TracingEnabled reports whether spans leave the process.
func TracingEnabled(cfg config.Config) bool {
	return cfg.Tracing.Endpoint != ""
}

// NewTracerProvider builds an OTLP-exporting provider. It returns nil when
// no collector endpoint is configured.
func NewTracerProvider(ctx context.Context, cfg config.Config) (*sdktrace.TracerProvider, error) {
	if !TracingEnabled(cfg) {
		return nil, nil
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Tracing.Protocol {
	case "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Tracing.Endpoint)}
		if cfg.Tracing.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	case "http", "":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Tracing.Endpoint)}
		if cfg.Tracing.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProtocol, cfg.Tracing.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	ratio := cfg.Tracing.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("deployment.environment", cfg.AppEnv),
		)),
	), nil
}

func registerTracing(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) error {
	tp, err := NewTracerProvider(context.Background(), cfg)
	if err != nil {
		return err
	}
	if tp == nil {
		return nil
	}
	otel.SetTracerProvider(tp)
	log.Info("tracing enabled",
		zap.String("endpoint", cfg.Tracing.Endpoint),
		zap.String("protocol", cfg.Tracing.Protocol),
	)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return nil
}
