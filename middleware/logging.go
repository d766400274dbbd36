package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/courier/job"
)

// Logging returns middleware that logs the start and outcome of every
// job execution, tagging each record with the job's identity and tenant.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		l := logger.With(
			slog.String("job_name", j.Name),
			slog.String("job_id", j.ID.String()),
		)

		l.Info("job started",
			slog.String("queue", j.Queue),
			slog.String("tenant", j.TenantID()),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			l.Error("job failed",
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
			return err
		}

		l.Info("job completed", slog.Duration("elapsed", elapsed))
		return nil
	}
}
