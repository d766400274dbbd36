// Package scope implements the per-attempt dependency container.
//
// A [Registry] holds provider factories registered once at startup, keyed by
// a stable type identifier. Each execution attempt opens a fresh [Scope]
// from the registry. The dispatcher seeds the scope with the job's metadata
// values, resolves the handler's dependencies through it, and disposes it
// unconditionally when the attempt finishes. Two concurrent attempts never
// share a scope, so instances resolved in one attempt are invisible to any
// other.
//
// Ordering requirement: Seed must be called before any Resolve that depends
// on the seeded key. Resolved instances are cached for the scope's lifetime,
// so seeding a key after a dependent has been resolved has no retroactive
// effect.
package scope

import (
	"fmt"
	"maps"
	"reflect"
	"sync"

	"github.com/xraph/courier"
)

// Factory constructs a dependency instance inside a scope. Factories may
// resolve further dependencies from the same scope, forming a
// constructor-style graph.
type Factory func(s *Scope) (any, error)

// Releaser is implemented by instances that hold resources to free when the
// owning scope is disposed. Instances implementing io.Closer are closed
// instead; Release takes precedence when both are implemented.
type Releaser interface {
	Release()
}

// UnresolvedError reports a resolution request for which no factory is
// registered. It unwraps to courier.ErrUnresolvedDependency.
type UnresolvedError struct {
	Key string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("scope: no provider registered for %q", e.Key)
}

func (e *UnresolvedError) Unwrap() error { return courier.ErrUnresolvedDependency }

// Key returns the stable registry key for type T. The key is derived from
// the type's name and package path; it is used for registration and lookup
// only, never for instantiation.
func Key[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// Registry maps type keys to provider factories. Register providers at
// startup; the registry is safe for concurrent use afterwards.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Provide registers a factory under an explicit key. Re-registering a key
// replaces the previous factory; scopes already open keep instances they
// have resolved.
func (r *Registry) Provide(key string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[key] = f
}

// Register registers a typed factory under the stable key for T.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func Register[T any](r *Registry, f func(s *Scope) (T, error)) {
	r.Provide(Key[T](), func(s *Scope) (any, error) {
		return f(s)
	})
}

// Open creates a fresh, empty scope backed by this registry. The caller
// owns the scope exclusively and must call Dispose when done.
func (r *Registry) Open() *Scope {
	return &Scope{
		reg:       r,
		seeds:     make(map[string]string),
		instances: make(map[string]any),
		resolving: make(map[string]bool),
	}
}

// Scope is an isolated, short-lived container of resolved dependency
// instances for a single execution attempt. A Scope is exclusively owned by
// the attempt that opened it and is not safe for concurrent resolution;
// Dispose alone is safe to call from any goroutine and is idempotent.
type Scope struct {
	reg *Registry

	mu        sync.Mutex
	seeds     map[string]string
	instances map[string]any
	resolving map[string]bool
	disposed  bool
}

// Seed stores a scalar value under key, making it visible to factories via
// Seeded. Seeding after a dependent instance has already been resolved does
// not rebuild that instance.
func (s *Scope) Seed(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.seeds[key] = value
}

// Seeded returns the seeded value for key and whether it is present.
func (s *Scope) Seeded(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.seeds[key]
	return v, ok
}

// SeedValues returns a copy of all seeded values.
func (s *Scope) SeedValues() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.seeds)
}

// ResolveKey resolves the dependency registered under key. The first
// resolution invokes the factory; the instance is then cached for the
// scope's lifetime. Resolution is recursive: the factory receives the scope
// and may resolve its own dependencies, in requirement order. Returns
// *UnresolvedError when no factory is registered and courier.ErrScopeDisposed
// after Dispose.
func (s *Scope) ResolveKey(key string) (any, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, courier.ErrScopeDisposed
	}
	if inst, ok := s.instances[key]; ok {
		s.mu.Unlock()
		return inst, nil
	}
	if s.resolving[key] {
		s.mu.Unlock()
		return nil, fmt.Errorf("scope: dependency cycle detected at %q", key)
	}

	s.reg.mu.RLock()
	factory, ok := s.reg.factories[key]
	s.reg.mu.RUnlock()
	if !ok {
		s.mu.Unlock()
		return nil, &UnresolvedError{Key: key}
	}

	s.resolving[key] = true
	// The factory may re-enter ResolveKey for its own dependencies.
	s.mu.Unlock()

	inst, err := factory(s)

	s.mu.Lock()
	delete(s.resolving, key)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("scope: build %q: %w", key, err)
	}
	if s.disposed {
		// The scope was disposed while the factory ran; release the
		// orphan immediately rather than caching it.
		s.mu.Unlock()
		release(inst)
		return nil, courier.ErrScopeDisposed
	}
	s.instances[key] = inst
	s.mu.Unlock()
	return inst, nil
}

// Resolve resolves the dependency registered for type T.
func Resolve[T any](s *Scope) (T, error) {
	inst, err := s.ResolveKey(Key[T]())
	if err != nil {
		var zero T
		return zero, err
	}

	typed, ok := inst.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("scope: provider for %q returned %T", Key[T](), inst)
	}
	return typed, nil
}

// Dispose releases every instance resolved in this scope exactly once, in
// unspecified order. It is idempotent: second and later calls are no-ops.
// After Dispose, ResolveKey fails with courier.ErrScopeDisposed.
func (s *Scope) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	instances := s.instances
	s.instances = nil
	s.mu.Unlock()

	for _, inst := range instances {
		release(inst)
	}
}

// Disposed reports whether Dispose has been called.
func (s *Scope) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func release(inst any) {
	switch v := inst.(type) {
	case Releaser:
		v.Release()
	case interface{ Close() error }:
		_ = v.Close()
	}
}
