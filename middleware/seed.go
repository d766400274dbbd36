package middleware

import (
	"context"

	"github.com/xraph/courier/job"
	"github.com/xraph/courier/scope"
	"github.com/xraph/courier/tenant"
)

// Seed returns the execution stage that copies the job's persisted metadata
// snapshot into the attempt's scope and restores the tenant into the
// context. It must run before any stage or handler that resolves
// metadata-derived dependencies (seed-before-resolve), so the engine places
// it ahead of the timeout stage and the handler in the default chain.
//
// Without this stage the execution-side tenant accessor derives its empty
// default for every job regardless of what was stamped at submission.
func Seed() Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if s, ok := scope.FromContext(ctx); ok {
			for k, v := range j.Metadata {
				s.Seed(k, v)
			}
		}
		if id := j.TenantID(); id != "" {
			ctx = tenant.WithID(ctx, id)
		}
		return next(ctx)
	}
}
