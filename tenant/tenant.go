// Package tenant implements the ambient tenant accessor in its two forms.
//
// At submission time the tenant identity lives in the caller's context
// (WithID / IDFromContext) and is captured into the job's metadata by the
// StampTenant enqueue stage. The [CreationAccessor] backing that path is
// settable exactly once per submission.
//
// At execution time the identity is derived from the metadata snapshot
// seeded into the attempt's scope. The [ExecutionAccessor] resolved there is
// read-only: derived, never asserted, so a job body cannot spoof its own
// tenant. When the job carries no tenant key the execution-side accessor
// reports the documented default — the empty string.
package tenant

import (
	"context"
	"sync"

	"github.com/xraph/courier"
	"github.com/xraph/courier/metadata"
	"github.com/xraph/courier/scope"
)

// Accessor exposes the current tenant identity. Both pipeline sides
// implement it; only the creation side accepts writes.
type Accessor interface {
	// TenantID returns the current tenant identifier, or the empty
	// string when none is known.
	TenantID() string

	// SetTenantID asserts the tenant identity. Allowed exactly once on
	// the creation side; always rejected on the execution side.
	SetTenantID(id string) error
}

// CreationAccessor is the submission-time accessor. It is writable exactly
// once: the first SetTenantID wins, the second returns
// courier.ErrTenantAlreadySet. Safe for concurrent use.
type CreationAccessor struct {
	mu  sync.Mutex
	id  string
	set bool
}

// NewCreationAccessor returns an accessor pre-populated from the context's
// ambient tenant, if any. A context-derived value counts as the one
// permitted write.
func NewCreationAccessor(ctx context.Context) *CreationAccessor {
	a := &CreationAccessor{}
	if id, ok := IDFromContext(ctx); ok {
		a.id = id
		a.set = true
	}
	return a
}

// TenantID returns the tenant set for this submission, or the empty string.
func (a *CreationAccessor) TenantID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// SetTenantID records the submitting tenant. A second call returns
// courier.ErrTenantAlreadySet regardless of the value.
func (a *CreationAccessor) SetTenantID(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.set {
		return courier.ErrTenantAlreadySet
	}
	a.id = id
	a.set = true
	return nil
}

// ExecutionAccessor is the execution-time accessor. Its value is derived
// from the scope's seeded metadata snapshot and cannot be changed.
type ExecutionAccessor struct {
	id string
}

// TenantID returns the tenant the job was submitted under, or the empty
// string when the job carries no tenant metadata.
func (a *ExecutionAccessor) TenantID() string { return a.id }

// SetTenantID always fails with courier.ErrTenantImmutable.
func (a *ExecutionAccessor) SetTenantID(string) error {
	return courier.ErrTenantImmutable
}

// RegisterProvider registers the execution-side accessor with a scope
// registry. The factory derives the tenant from the value seeded under
// metadata.TenantKey; the engine registers this provider by default.
func RegisterProvider(reg *scope.Registry) {
	scope.Register(reg, func(s *scope.Scope) (Accessor, error) {
		id, _ := s.Seeded(metadata.TenantKey)
		return &ExecutionAccessor{id: id}, nil
	})
}

// Current resolves the execution-side accessor from the scope carried by
// ctx. It returns false when no scope is attached, which means the caller
// is not running inside a dispatched job.
func Current(ctx context.Context) (Accessor, bool) {
	s, ok := scope.FromContext(ctx)
	if !ok {
		return nil, false
	}
	a, err := scope.Resolve[Accessor](s)
	if err != nil {
		return nil, false
	}
	return a, true
}
