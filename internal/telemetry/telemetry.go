// Package telemetry wraps each ASR round-trip in an OpenTelemetry
// span, following the tracer-provider-plus-named-tracer shape used by
// the pack's otel adapters. No OTLP endpoint is named anywhere in this
// repo's configuration surface, so the provider here runs without an
// exporter wired to it; swapping in a real exporter later is a matter
// of adding one more WithBatcher call in Init.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/nullagree/streamcribe"

// Init installs a global TracerProvider for the process and returns
// its shutdown func.
func Init() func(context.Context) error {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// Tracer returns the package-wide tracer.
func Tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(tracerName)
}

// StartASRRequest opens a span around one backend round-trip.
func StartASRRequest(ctx context.Context, committed, end uint64) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "streamcribe.asr_request", trace.WithAttributes(
		attribute.Int64("streamcribe.committed_sample", int64(committed)),
		attribute.Int64("streamcribe.end_sample", int64(end)),
	))
}
