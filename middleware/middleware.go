package middleware

import (
	"context"

	"github.com/xraph/courier/job"
)

// Handler is the terminal function that executes job logic.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic around one execution
// attempt. Code before the next call is the "before" stage; code after it
// is the symmetric "after" stage with the outcome in hand. A middleware
// that does not call next short-circuits the rest of the chain.
type Middleware func(ctx context.Context, j *job.Job, next Handler) error

// Chain folds the given middleware into one. The chain runs left to
// right, so the first element is the outermost wrapper:
//
//	Chain(logging, recover, seed) // logging → recover → seed → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		var run func(ctx context.Context, i int) error
		run = func(ctx context.Context, i int) error {
			if i == len(mws) {
				return next(ctx)
			}
			return mws[i](ctx, j, func(ctx context.Context) error {
				return run(ctx, i+1)
			})
		}
		return run(ctx, 0)
	}
}
