// Package telemetry initializes OpenTelemetry metrics export.
//
// Telemetry is off by default. Set TRACKWIRE_OTEL_ENABLED=1 to turn it on,
// then either TRACKWIRE_OTEL_STDOUT=1 for a stdout exporter (debugging) or
// OTEL_EXPORTER_OTLP_ENDPOINT for an OTLP/HTTP collector. When disabled,
// instruments throughout the codebase resolve against a no-op provider and
// cost nothing.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var shutdownFns []func(context.Context) error

// Enabled reports whether telemetry export is turned on.
func Enabled() bool {
	v := os.Getenv("TRACKWIRE_OTEL_ENABLED")
	return v == "1" || v == "true"
}

// Init configures the global meter provider. Call once at startup; when
// telemetry is disabled the global provider stays no-op and every
// instrument costs nothing.
func Init(ctx context.Context, serviceName, version string) error {
	if !Enabled() {
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("building telemetry resource: %w", err)
	}

	provider, err := buildMetricProvider(ctx, res)
	if err != nil {
		return err
	}
	otel.SetMeterProvider(provider)
	shutdownFns = append(shutdownFns, provider.Shutdown)
	return nil
}

func buildMetricProvider(ctx context.Context, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	var readers []sdkmetric.Option

	if v := os.Getenv("TRACKWIRE_OTEL_STDOUT"); v == "1" || v == "true" {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second))))
	}

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		exp, err := otlpmetrichttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating OTLP metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second))))
	}

	opts := append([]sdkmetric.Option{sdkmetric.WithResource(res)}, readers...)
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Shutdown flushes and stops all exporters. Safe to call when Init was never
// called or telemetry is disabled.
func Shutdown(ctx context.Context) error {
	var firstErr error
	for _, fn := range shutdownFns {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	shutdownFns = nil
	return firstErr
}
