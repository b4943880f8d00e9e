// Package tracing wires OpenTelemetry spans around the engine's
// out-of-band work: bridge publish/receive cycles and NPC LLM think
// calls. The default provider exports nowhere (spans stay in-process);
// deployments that want a collector install their own exporter before
// calling Init.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/valpatel/tritium-sc/engine-core"

// Init installs a process-wide tracer provider and returns a shutdown
// function to flush it on exit.
func Init() func(context.Context) error {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// Tracer returns the engine's named tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// Span starts a span under the engine tracer; callers must End it.
func Span(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}
