// Package svcotel defines the tracer provider contract the analytics stack
// consumes. Tracing is optional for the service; when no OTLP endpoint is
// configured the no-op provider stands in and every span becomes free.
package svcotel

import (
	"context"

	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// TracerProvider extends trace.TracerProvider with the lifecycle methods the
// SDK implementation has but the interface omits.
type TracerProvider interface {
	trace.TracerProvider
	Shutdown(ctx context.Context) error
	RegisterSpanProcessor(sp tracesdk.SpanProcessor)
}

var _ TracerProvider = NoopProvider{}

// NoopProvider satisfies TracerProvider with spans that record nothing.
type NoopProvider struct {
	trace.TracerProvider
}

// NewNoopProvider returns a no-op tracer provider.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{
		TracerProvider: tracenoop.NewTracerProvider(),
	}
}

// Shutdown always succeeds, there is nothing to flush.
func (p NoopProvider) Shutdown(context.Context) error {
	return nil
}

// RegisterSpanProcessor discards the processor.
func (p NoopProvider) RegisterSpanProcessor(sp tracesdk.SpanProcessor) {}
