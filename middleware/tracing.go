package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/courier/job"
)

// tracerName is the instrumentation scope name for courier tracing.
const tracerName = "github.com/xraph/courier"

// spanAttrs builds the span attributes describing one execution attempt.
func spanAttrs(j *job.Job) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("courier.job.id", j.ID.String()),
		attribute.String("courier.job.name", j.Name),
		attribute.String("courier.queue", j.Queue),
		attribute.Int("courier.retry_count", j.RetryCount),
		attribute.String("courier.tenant", j.TenantID()),
	}
}

// Tracing returns middleware that runs each job inside an OpenTelemetry
// span named "courier.job.execute". Without a global TracerProvider the
// noop tracer is used and the middleware adds nothing.
//
// Spans carry courier.job.id, courier.job.name, courier.queue,
// courier.retry_count, and courier.tenant. A handler error records the
// exception and marks the span status Error.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer is Tracing with an explicit tracer, for wiring a
// test TracerProvider or running several providers side by side.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		ctx, span := tracer.Start(ctx, "courier.job.execute",
			trace.WithAttributes(spanAttrs(j)...),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		if err := next(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		span.SetStatus(codes.Ok, "")
		return nil
	}
}
