package tenant

import "context"

type ctxKey struct{}

// WithID attaches the ambient tenant identifier to the context. Callers set
// this where the identity is established (for example HTTP auth middleware);
// the StampTenant enqueue stage captures it into job metadata.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the ambient tenant identifier, if any.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
