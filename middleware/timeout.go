package middleware

import (
	"context"
	"log/slog"

	"github.com/xraph/courier/job"
)

// Timeout returns middleware that applies the job's own Timeout as a
// context deadline around the handler call. Cancellation is cooperative:
// a handler that ignores ctx.Done runs to completion regardless, but its
// result is still reported as context.DeadlineExceeded by any
// ctx-respecting work underneath it. Jobs without a Timeout pass through
// untouched.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if j.Timeout <= 0 {
			return next(ctx)
		}

		logger.Debug("job timeout set",
			slog.String("job_id", j.ID.String()),
			slog.Duration("timeout", j.Timeout),
		)

		ctx, cancel := context.WithTimeout(ctx, j.Timeout)
		defer cancel()
		return next(ctx)
	}
}
