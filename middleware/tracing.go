package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/conductorhq/conductor/entry"
)

// tracerName is the instrumentation scope name for conductor tracing.
const tracerName = "github.com/conductorhq/conductor"

// Tracing returns middleware that wraps entry execution in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop tracer
// is used and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: conductor.entry.id, conductor.job.id,
// conductor.job.name, conductor.priority, conductor.attempt.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, e *entry.Entry, next Handler) error {
		ctx, span := tracer.Start(ctx, "conductor.entry.execute",
			trace.WithAttributes(
				attribute.String("conductor.entry.id", e.ID.String()),
				attribute.String("conductor.job.id", e.JobID),
				attribute.String("conductor.job.name", e.JobName),
				attribute.String("conductor.priority", string(e.Priority)),
				attribute.Int("conductor.attempt", e.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
