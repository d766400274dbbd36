package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/courier/job"
)

// meterName is the instrumentation scope name for courier metrics.
const meterName = "github.com/xraph/courier"

// jobInstruments bundles the per-execution instruments. They are built
// once when the middleware is constructed; the OTel API hands back noop
// instruments on creation errors, so a missing MeterProvider simply
// turns the middleware into a pass-through.
type jobInstruments struct {
	duration   metric.Float64Histogram
	executions metric.Int64Counter
}

func newJobInstruments(meter metric.Meter) *jobInstruments {
	duration, _ := meter.Float64Histogram(
		"courier.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"courier.job.executions",
		metric.WithDescription("Total number of job executions"),
		metric.WithUnit("{execution}"),
	)
	return &jobInstruments{duration: duration, executions: executions}
}

func (in *jobInstruments) record(ctx context.Context, j *job.Job, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("job_name", j.Name),
		attribute.String("queue", j.Queue),
		attribute.String("tenant", j.TenantID()),
		attribute.String("status", status),
	)
	in.duration.Record(ctx, elapsed.Seconds(), attrs)
	in.executions.Add(ctx, 1, attrs)
}

// Metrics returns middleware that records execution metrics through the
// global OTel MeterProvider.
//
// Instruments:
//   - courier.job.duration (Float64Histogram): execution time in seconds
//   - courier.job.executions (Int64Counter): total executions
//
// Both carry job_name, queue, tenant, and status ("ok" or "error")
// attributes.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter is Metrics with an explicit meter, for wiring a test
// MeterProvider.
func MetricsWithMeter(meter metric.Meter) Middleware {
	instruments := newJobInstruments(meter)

	return func(ctx context.Context, j *job.Job, next Handler) error {
		start := time.Now()
		err := next(ctx)
		instruments.record(ctx, j, time.Since(start), err)
		return err
	}
}
