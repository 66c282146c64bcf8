// Package telemetry starts this module's tracer provider and meter, and
// exposes the Prometheus registry a gateway can serve on /metrics.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ShutdownFunc flushes and stops the tracer provider started by Init.
type ShutdownFunc func(ctx context.Context) error

// ServiceName identifies this module's spans and resource attributes.
const ServiceName = "httpcore"

// Init builds a tracer provider for serviceVersion, installs it as the
// global provider, and returns a tracer from it together with the
// provider's Shutdown as a ShutdownFunc. The provider has no span
// processor and no exporter, so the spans it records are not exported
// anywhere; the returned tracer stays bound to this provider even if
// another global provider is installed later.
func Init(serviceVersion string) (trace.Tracer, ShutdownFunc, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(provider)

	tracer := provider.Tracer(ServiceName)
	return tracer, provider.Shutdown, nil
}

// RequestAttributes builds the standard span attributes BaseApplication
// attaches to the per-request span: route, response status, and whether
// the request was aborted before it completed.
func RequestAttributes(route string, status int, aborted bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
		attribute.Bool("http.aborted", aborted),
	}
}
