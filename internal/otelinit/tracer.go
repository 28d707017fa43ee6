// Package otelinit bootstraps the OpenTelemetry tracer and meter
// providers cmd/orchestrad exports to an OTLP collector. The supervisor
// and cron packages only ever call otel.Tracer/otel.Meter; they don't
// know or care whether a real provider was ever installed.
package otelinit

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
)

// InitTracer installs a global tracer provider backed by an OTLP gRPC
// exporter. If the exporter cannot be constructed, tracing degrades to
// a no-op provider rather than failing startup.
func InitTracer(ctx context.Context, service string) func(context.Context) error {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()),
	)
	if err != nil {
		slog.Warn("otel trace exporter init failed, tracing disabled", "error", err)
		return func(context.Context) error { return nil }
	}

	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
	))
	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	slog.Info("otel tracer initialized", "endpoint", endpoint, "service", service)
	return tp.Shutdown
}

// Flush gives a shutdown function a bounded window to drain buffered
// spans or metrics before the process exits.
func Flush(ctx context.Context, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Warn("otel shutdown did not complete cleanly", "error", err)
	}
}
