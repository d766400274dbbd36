package middleware

import (
	"context"

	"github.com/xraph/courier/job"
	"github.com/xraph/courier/metadata"
	"github.com/xraph/courier/tenant"
)

// EnqueueHandler is the terminal function of the enqueue chain; in the
// engine it performs the atomic persist of descriptor + metadata.
type EnqueueHandler func(ctx context.Context) error

// Enqueue wraps a submission with cross-cutting logic. Stages run in
// registration order before the job is persisted and are the only code
// allowed to write the job's metadata; after the terminal handler returns,
// the metadata is frozen. Stages must not assume they re-run on retry —
// they run once per submission.
type Enqueue func(ctx context.Context, j *job.Job, md *metadata.Metadata, next EnqueueHandler) error

// EnqueueChain composes enqueue stages right-to-left, mirroring Chain.
func EnqueueChain(stages ...Enqueue) Enqueue {
	return func(ctx context.Context, j *job.Job, md *metadata.Metadata, next EnqueueHandler) error {
		h := next
		for i := len(stages) - 1; i >= 0; i-- {
			stage := stages[i]
			prev := h
			h = func(ctx context.Context) error {
				return stage(ctx, j, md, prev)
			}
		}
		return h(ctx)
	}
}

// StampTenant returns the enqueue stage that captures the caller's ambient
// tenant into the job's metadata under metadata.TenantKey. Submissions
// without an ambient tenant are stamped with nothing; the execution-side
// accessor then derives its documented empty default.
func StampTenant() Enqueue {
	return func(ctx context.Context, _ *job.Job, md *metadata.Metadata, next EnqueueHandler) error {
		acc := tenant.NewCreationAccessor(ctx)
		if id := acc.TenantID(); id != "" {
			if err := md.Set(metadata.TenantKey, id); err != nil {
				return err
			}
		}
		return next(ctx)
	}
}
