package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/metadata"
	"github.com/xraph/courier/middleware"
	"github.com/xraph/courier/scope"
	"github.com/xraph/courier/tenant"
)

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *job.Job, next middleware.Handler) error {
		order = append(order, "mw1-before")
		err := next(ctx)
		order = append(order, "mw1-after")
		return err
	}

	mw2 := func(ctx context.Context, _ *job.Job, next middleware.Handler) error {
		order = append(order, "mw2-before")
		err := next(ctx)
		order = append(order, "mw2-after")
		return err
	}

	chain := middleware.Chain(mw1, mw2)
	j := &job.Job{Name: "test", ID: id.NewJobID()}
	handler := func(_ context.Context) error {
		order = append(order, "handler")
		return nil
	}

	err := chain(context.Background(), j, handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	handler := func(_ context.Context) error {
		called = true
		return nil
	}

	err := chain(context.Background(), &job.Job{ID: id.NewJobID()}, handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ *job.Job, next middleware.Handler) error {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := errors.New("handler error")

	err := chain(context.Background(), &job.Job{ID: id.NewJobID()}, func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestEnqueueChain_StagesRunInOrder(t *testing.T) {
	var order []string

	stage := func(name string) middleware.Enqueue {
		return func(ctx context.Context, _ *job.Job, md *metadata.Metadata, next middleware.EnqueueHandler) error {
			order = append(order, name)
			if err := md.Set("stage", name); err != nil {
				return err
			}
			return next(ctx)
		}
	}

	md := metadata.New()
	chain := middleware.EnqueueChain(stage("first"), stage("second"))

	err := chain(context.Background(), &job.Job{ID: id.NewJobID()}, md, func(_ context.Context) error {
		order = append(order, "persist")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"first", "second", "persist"}
	for i, want := range expected {
		if order[i] != want {
			t.Fatalf("order = %v, want %v", order, expected)
		}
	}

	// Later stages overwrite earlier keys.
	if v, _ := md.Get("stage"); v != "second" {
		t.Errorf("metadata stage = %q, want %q", v, "second")
	}
}

func TestEnqueueChain_StageErrorAbortsPersist(t *testing.T) {
	want := errors.New("stage rejected submission")
	failing := func(context.Context, *job.Job, *metadata.Metadata, middleware.EnqueueHandler) error {
		return want
	}

	persisted := false
	chain := middleware.EnqueueChain(failing)
	err := chain(context.Background(), &job.Job{ID: id.NewJobID()}, metadata.New(), func(_ context.Context) error {
		persisted = true
		return nil
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if persisted {
		t.Error("terminal persist ran after a stage error")
	}
}

func TestStampTenant_CapturesAmbientTenant(t *testing.T) {
	md := metadata.New()
	ctx := tenant.WithID(context.Background(), "100")

	chain := middleware.EnqueueChain(middleware.StampTenant())
	err := chain(ctx, &job.Job{ID: id.NewJobID()}, md, func(_ context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v, _ := md.Get(metadata.TenantKey); v != "100" {
		t.Errorf("stamped tenant = %q, want %q", v, "100")
	}
}

func TestStampTenant_NoAmbientTenant(t *testing.T) {
	md := metadata.New()

	chain := middleware.EnqueueChain(middleware.StampTenant())
	err := chain(context.Background(), &job.Job{ID: id.NewJobID()}, md, func(_ context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if md.Len() != 0 {
		t.Errorf("metadata written without an ambient tenant: %d keys", md.Len())
	}
}

func TestSeed_CopiesMetadataIntoScope(t *testing.T) {
	reg := scope.NewRegistry()
	s := reg.Open()
	defer s.Dispose()

	j := &job.Job{
		ID:   id.NewJobID(),
		Name: "seeded",
		Metadata: metadata.Snapshot{
			metadata.TenantKey: "100",
			"region":           "eu-west-1",
		},
	}

	ctx := scope.WithScope(context.Background(), s)
	mw := middleware.Seed()

	err := mw(ctx, j, func(ctx context.Context) error {
		if v, _ := s.Seeded(metadata.TenantKey); v != "100" {
			t.Errorf("scope tenant seed = %q, want %q", v, "100")
		}
		if v, _ := s.Seeded("region"); v != "eu-west-1" {
			t.Errorf("scope region seed = %q, want %q", v, "eu-west-1")
		}
		if got, _ := tenant.IDFromContext(ctx); got != "100" {
			t.Errorf("context tenant = %q, want %q", got, "100")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSeed_EmptyMetadata(t *testing.T) {
	reg := scope.NewRegistry()
	s := reg.Open()
	defer s.Dispose()

	j := &job.Job{ID: id.NewJobID(), Name: "bare"}
	ctx := scope.WithScope(context.Background(), s)

	err := middleware.Seed()(ctx, j, func(ctx context.Context) error {
		if _, ok := tenant.IDFromContext(ctx); ok {
			t.Error("context carries a tenant for a job without metadata")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Recover(logger)
	j := &job.Job{Name: "panicky", ID: id.NewJobID()}

	err := mw(context.Background(), j, func(_ context.Context) error {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if got := err.Error(); got != "panic in job panicky: test panic" {
		t.Errorf("unexpected error message: %q", got)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Recover(logger)
	j := &job.Job{Name: "normal", ID: id.NewJobID()}

	called := false
	err := mw(context.Background(), j, func(_ context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestTimeout_CancelsContext(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Timeout(logger)
	j := &job.Job{Name: "slow", ID: id.NewJobID(), Timeout: 1}

	err := mw(context.Background(), j, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestLogging_PropagatesOutcome(t *testing.T) {
	logger := slog.Default()
	mw := middleware.Logging(logger)
	j := &job.Job{Name: "log-test", ID: id.NewJobID(), Queue: "default"}
	want := errors.New("fail")

	err := mw(context.Background(), j, func(_ context.Context) error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
