// Package middleware provides the two interceptor chains around a job's
// lifetime: enqueue stages that run at submission, and execution middleware
// that wraps each attempt.
//
// An [Enqueue] stage runs before the descriptor is persisted and is the
// only code with write access to the job's metadata. A [Middleware] wraps
// one execution attempt; code before its next call is a "before" stage,
// code after is the symmetric "after" stage receiving the outcome. Both
// chains compose right-to-left: the first element is the outermost wrapper.
//
//	// logging → recover → seed → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger), middleware.Seed())
//
// # Built-in Stages
//
//   - [StampTenant] — enqueue stage capturing the ambient tenant into metadata
//   - [Seed] — execution stage seeding the scope from the persisted metadata
//   - [Logging] — logs job name, queue, tenant, duration, and outcome
//   - [Recover] — catches panics and converts them to errors
//   - [Timeout] — cancels the job context after a configured duration
//   - [Tracing] — wraps execution in an OpenTelemetry span
//   - [Metrics] — records per-job duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, j *job.Job, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
