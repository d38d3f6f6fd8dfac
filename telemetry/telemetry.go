// Package telemetry installs the OpenTelemetry tracer provider used by the
// request tracing middleware.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"github.com/goflash/devserver/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Shutdown flushes pending spans and stops the provider.
type Shutdown func(context.Context) error

// Setup installs a global tracer provider that writes finished spans as
// JSON to w, and the W3C trace context propagator. When tracing is disabled
// nothing is installed and the returned Shutdown does nothing.
//
// Example:
//
//	shutdown, err := telemetry.Setup(ctx, cfg.Tracing, os.Stdout)
//	if err != nil {
//		return err
//	}
//	defer func() { _ = shutdown(context.Background()) }()
func Setup(ctx context.Context, cfg config.Tracing, w io.Writer) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	tp, err := NewProvider(ctx, cfg.ServiceName, w)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// NewProvider returns a batching tracer provider exporting to w.
func NewProvider(ctx context.Context, serviceName string, w io.Writer) (*tracesdk.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: exporter: %w", err)
	}
	// schemaless, so it merges with the default resource whatever its schema
	r, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}
	return tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(r),
	), nil
}
