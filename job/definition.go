package job

import "context"

// Definition pairs a job name with a typed handler. T is the payload
// type and must round-trip through JSON.
//
// Handlers run inside an execution scope: scope.FromContext resolves
// scope-registered dependencies, tenant.Current reads the ambient
// tenant.
type Definition[T any] struct {
	// Name uniquely identifies this job type.
	Name string

	// Handler processes one decoded payload.
	Handler func(ctx context.Context, payload T) error

	// Opts configures retries, queue, priority, and timeout.
	Opts Options
}

// NewDefinition builds a typed definition, applying opts on top of
// DefaultOptions.
func NewDefinition[T any](name string, handler func(ctx context.Context, payload T) error, opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Name:    name,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}
