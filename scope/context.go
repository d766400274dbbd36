package scope

import "context"

type ctxKey struct{}

// WithScope attaches a scope to the context. The executor does this before
// running the middleware chain so handlers and enqueue-time callers can
// reach the current attempt's scope.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the scope carried by the context, if any.
func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Scope)
	return s, ok
}
