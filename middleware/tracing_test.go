package middleware_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/metadata"
	mw "github.com/xraph/courier/middleware"
)

func newTestJob() *job.Job {
	return &job.Job{
		ID:         id.NewJobID(),
		Name:       "send-invoice",
		Queue:      "default",
		RetryCount: 2,
		Metadata:   metadata.Snapshot{metadata.TenantKey: "100"},
	}
}

// runTraced executes one job through tracing middleware backed by an
// in-memory span recorder and returns the single ended span.
func runTraced(t *testing.T, j *job.Job, handler mw.Handler) sdktrace.ReadOnlySpan {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	m := mw.TracingWithTracer(tp.Tracer("test"))

	_ = m(context.Background(), j, handler)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d ended spans, want 1", len(spans))
	}
	return spans[0]
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, a := range span.Attributes() {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_SpanNameAndAttributes(t *testing.T) {
	j := newTestJob()
	span := runTraced(t, j, func(_ context.Context) error { return nil })

	if span.Name() != "courier.job.execute" {
		t.Errorf("span name = %q, want %q", span.Name(), "courier.job.execute")
	}

	wantStrings := map[string]string{
		"courier.job.id":   j.ID.String(),
		"courier.job.name": "send-invoice",
		"courier.queue":    "default",
		"courier.tenant":   "100",
	}
	for key, want := range wantStrings {
		v, ok := spanAttr(span, key)
		if !ok {
			t.Errorf("attribute %q missing", key)
			continue
		}
		if v.AsString() != want {
			t.Errorf("attribute %q = %q, want %q", key, v.AsString(), want)
		}
	}

	if v, ok := spanAttr(span, "courier.retry_count"); !ok || v.AsInt64() != 2 {
		t.Errorf("courier.retry_count = %v (present=%v), want 2", v, ok)
	}
}

func TestTracing_SuccessSetsOkStatus(t *testing.T) {
	span := runTraced(t, newTestJob(), func(_ context.Context) error { return nil })

	if span.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", span.Status().Code)
	}
}

func TestTracing_ErrorRecordedOnSpan(t *testing.T) {
	handlerErr := errors.New("handler failed")
	span := runTraced(t, newTestJob(), func(_ context.Context) error { return handlerErr })

	if span.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", span.Status().Code)
	}

	var sawException bool
	for _, ev := range span.Events() {
		if ev.Name == "exception" {
			sawException = true
		}
	}
	if !sawException {
		t.Error("no exception event recorded on span")
	}
}

func TestTracing_HandlerSeesSpanContext(t *testing.T) {
	var inner trace.SpanContext
	span := runTraced(t, newTestJob(), func(ctx context.Context) error {
		inner = trace.SpanFromContext(ctx).SpanContext()
		return nil
	})

	if !inner.IsValid() {
		t.Fatal("handler context carries no valid span")
	}
	if inner.TraceID() != span.SpanContext().TraceID() {
		t.Error("handler span belongs to a different trace")
	}
}

func TestTracing_NoGlobalProviderIsPassThrough(t *testing.T) {
	m := mw.Tracing()

	var called bool
	err := m(context.Background(), newTestJob(), func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}
