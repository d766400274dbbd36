// Package worker provides the job execution engine — an Executor that
// invokes registered handlers through middleware inside a per-attempt
// dependency scope, and a Pool that manages concurrent worker goroutines
// polling for jobs.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/courier/backoff"
	"github.com/xraph/courier/dlq"
	"github.com/xraph/courier/ext"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/middleware"
	"github.com/xraph/courier/scope"
)

// Executor runs one execution attempt at a time: handler lookup, a fresh
// dependency scope, the middleware chain, and then the outcome — terminal
// completion, a rescheduled retry, or a move to the dead letter queue.
//
// The scope opened for an attempt is disposed when the attempt ends, on
// every path, so scoped instances never leak across attempts or jobs.
type Executor struct {
	registry   *job.Registry
	providers  *scope.Registry
	extensions *ext.Registry
	store      job.Store
	dlqService *dlq.Service
	backoff    backoff.Strategy
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *job.Registry,
	providers *scope.Registry,
	extensions *ext.Registry,
	store job.Store,
	dlqService *dlq.Service,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry:   registry,
		providers:  providers,
		extensions: extensions,
		store:      store,
		dlqService: dlqService,
		backoff:    bo,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs one attempt of j and records its outcome.
//
// A nil handler error marks the job completed and emits JobCompleted. A
// failing attempt increments the retry counter; with retries remaining
// the job is rescheduled (JobRetrying), otherwise it is marked failed
// and pushed to the DLQ (JobFailed + JobDLQ). A job whose name has no
// registered handler is dead-lettered immediately: the registry is fixed
// at startup, so retrying cannot help, and the DLQ keeps the job
// replayable once a handler exists. The returned error is nil only for a
// completed attempt.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	handler, ok := e.registry.Get(j.Name)
	if !ok {
		err := fmt.Errorf("no handler registered for job %q", j.Name)
		j.UpdatedAt = time.Now().UTC()
		j.LastError = err.Error()
		return e.deadLetter(ctx, j, err)
	}

	sc := e.providers.Open()
	defer sc.Dispose()
	ctx = scope.WithScope(ctx, sc)

	start := time.Now()
	err := e.mw(ctx, j, func(ctx context.Context) error {
		return handler(ctx, j.Payload)
	})
	elapsed := time.Since(start)

	now := time.Now().UTC()
	j.UpdatedAt = now

	if err == nil {
		return e.complete(ctx, j, elapsed)
	}

	j.RetryCount++
	j.LastError = err.Error()
	if j.RetryCount <= j.MaxRetries {
		return e.retryLater(ctx, j, now, err)
	}
	return e.deadLetter(ctx, j, err)
}

// complete marks the job completed and emits JobCompleted.
func (e *Executor) complete(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	now := j.UpdatedAt
	j.State = job.StateCompleted
	j.CompletedAt = &now

	if err := e.store.MarkTerminal(ctx, j.ID, job.OutcomeCompleted, ""); err != nil {
		e.logger.Error("failed to mark job completed",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

// retryLater reschedules the job with a backoff delay. Identity and the
// frozen metadata snapshot are untouched; only lifecycle fields move. The
// returned error wraps handlerErr so callers can match handler sentinels.
func (e *Executor) retryLater(ctx context.Context, j *job.Job, now time.Time, handlerErr error) error {
	delay := e.backoff.Delay(j.RetryCount)
	j.RunAt = now.Add(delay)
	j.State = job.StateRetrying

	if err := e.store.UpdateJob(ctx, j); err != nil {
		e.logger.Error("failed to update job for retry",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitJobRetrying(ctx, j, j.RetryCount, j.RunAt)

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Int("attempt", j.RetryCount),
		slog.Int("max_retries", j.MaxRetries),
		slog.Duration("delay", delay),
	)

	return fmt.Errorf("job %s retry %d/%d: %w", j.Name, j.RetryCount, j.MaxRetries, handlerErr)
}

// deadLetter marks the job failed and hands it to the DLQ service.
func (e *Executor) deadLetter(ctx context.Context, j *job.Job, handlerErr error) error {
	j.State = job.StateFailed

	if err := e.store.MarkTerminal(ctx, j.ID, job.OutcomeFailed, handlerErr.Error()); err != nil {
		e.logger.Error("failed to mark job failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	if e.dlqService != nil {
		if err := e.dlqService.Push(ctx, j, handlerErr); err != nil {
			e.logger.Error("failed to push job to DLQ",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	e.extensions.EmitJobFailed(ctx, j, handlerErr)
	e.extensions.EmitJobDLQ(ctx, j, handlerErr)

	e.logger.Warn("job moved to DLQ after exhausting retries",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.Int("retry_count", j.RetryCount),
		slog.String("error", handlerErr.Error()),
	)

	return handlerErr
}
