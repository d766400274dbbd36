package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
)

// hookList caches the extensions implementing one hook interface, paired
// with the extension name captured at registration time so emit paths
// never type-assert back to Extension.
type hookList[H any] struct {
	entries []hookEntry[H]
}

type hookEntry[H any] struct {
	name string
	hook H
}

// collect adds e to the list when it implements H.
func collect[H any](l *hookList[H], e Extension) {
	if h, ok := e.(H); ok {
		l.entries = append(l.entries, hookEntry[H]{name: e.Name(), hook: h})
	}
}

// each invokes fn for every cached hook. Hook errors are logged and
// swallowed; an extension must never block the pipeline.
func (l *hookList[H]) each(logger *slog.Logger, hookName string, fn func(H) error) {
	for _, en := range l.entries {
		if err := fn(en.hook); err != nil {
			logger.Warn("extension hook error",
				slog.String("hook", hookName),
				slog.String("extension", en.name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Registry holds registered extensions and dispatches lifecycle events to
// them in registration order. Hooks are cached per event at registration
// time, so emitting an event touches only the extensions that opted in.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobEnqueued  hookList[JobEnqueued]
	jobStarted   hookList[JobStarted]
	jobCompleted hookList[JobCompleted]
	jobFailed    hookList[JobFailed]
	jobRetrying  hookList[JobRetrying]
	jobDLQ       hookList[JobDLQ]
	cronFired    hookList[CronFired]
	shutdown     hookList[Shutdown]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension to every hook cache it implements.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)

	collect(&r.jobEnqueued, e)
	collect(&r.jobStarted, e)
	collect(&r.jobCompleted, e)
	collect(&r.jobFailed, e)
	collect(&r.jobRetrying, e)
	collect(&r.jobDLQ, e)
	collect(&r.cronFired, e)
	collect(&r.shutdown, e)
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitJobEnqueued notifies all extensions that implement JobEnqueued.
func (r *Registry) EmitJobEnqueued(ctx context.Context, j *job.Job) {
	r.jobEnqueued.each(r.logger, "OnJobEnqueued", func(h JobEnqueued) error {
		return h.OnJobEnqueued(ctx, j)
	})
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	r.jobStarted.each(r.logger, "OnJobStarted", func(h JobStarted) error {
		return h.OnJobStarted(ctx, j)
	})
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	r.jobCompleted.each(r.logger, "OnJobCompleted", func(h JobCompleted) error {
		return h.OnJobCompleted(ctx, j, elapsed)
	})
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	r.jobFailed.each(r.logger, "OnJobFailed", func(h JobFailed) error {
		return h.OnJobFailed(ctx, j, jobErr)
	})
}

// EmitJobRetrying notifies all extensions that implement JobRetrying.
func (r *Registry) EmitJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) {
	r.jobRetrying.each(r.logger, "OnJobRetrying", func(h JobRetrying) error {
		return h.OnJobRetrying(ctx, j, attempt, nextRunAt)
	})
}

// EmitJobDLQ notifies all extensions that implement JobDLQ.
func (r *Registry) EmitJobDLQ(ctx context.Context, j *job.Job, jobErr error) {
	r.jobDLQ.each(r.logger, "OnJobDLQ", func(h JobDLQ) error {
		return h.OnJobDLQ(ctx, j, jobErr)
	})
}

// EmitCronFired notifies all extensions that implement CronFired.
func (r *Registry) EmitCronFired(ctx context.Context, entryName string, jobID id.JobID) {
	r.cronFired.each(r.logger, "OnCronFired", func(h CronFired) error {
		return h.OnCronFired(ctx, entryName, jobID)
	})
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.shutdown.each(r.logger, "OnShutdown", func(h Shutdown) error {
		return h.OnShutdown(ctx)
	})
}
