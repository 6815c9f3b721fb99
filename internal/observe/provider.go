package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig describes the telemetry identity and export targets of the
// process (the answering server or the ingestion CLI).
type ProviderConfig struct {
	// ServiceName is reported on every span and metric. Default: "kotodama".
	ServiceName string

	// ServiceVersion is reported alongside ServiceName when set.
	ServiceVersion string

	// TraceExporter receives finished spans. When nil, spans are still
	// created (so correlation IDs and trace-annotated logs work) but never
	// leave the process.
	TraceExporter sdktrace.SpanExporter
}

// InitProvider wires the global OpenTelemetry SDK for the process: a tracer
// provider with the configured exporter, and a meter provider bridged to
// Prometheus so the server's /metrics endpoint serves everything recorded
// through [Metrics].
//
// The returned shutdown function flushes both providers; defer it from main
// with a short timeout so buffered telemetry survives process exit.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "kotodama"
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	var closers []func(context.Context) error

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)
	closers = append(closers, tp.Shutdown)

	promExp, err := promexporter.New()
	if err != nil {
		return nil, errors.Join(err, tp.Shutdown(ctx))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)
	closers = append(closers, mp.Shutdown)

	return func(ctx context.Context) error {
		var errs []error
		for _, stop := range closers {
			if err := stop(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}, nil
}
