package courier

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("courier: no store configured")
	ErrStoreClosed = errors.New("courier: store closed")

	// Not found errors.
	ErrJobNotFound      = errors.New("courier: job not found")
	ErrMetadataNotFound = errors.New("courier: job metadata not found")
	ErrDLQNotFound      = errors.New("courier: dlq entry not found")
	ErrCronNotFound     = errors.New("courier: cron entry not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("courier: job already exists")
	ErrDuplicateCron    = errors.New("courier: duplicate cron entry")

	// State errors.
	ErrInvalidState       = errors.New("courier: invalid state transition")
	ErrMaxRetriesExceeded = errors.New("courier: max retries exceeded")
	ErrJobNotCancellable  = errors.New("courier: only pending or retrying jobs can be cancelled")

	// Metadata errors. Metadata is frozen when the descriptor is
	// persisted; later writes fail.
	ErrMetadataFrozen = errors.New("courier: metadata frozen after persistence")

	// Scope errors.
	ErrScopeDisposed = errors.New("courier: scope disposed")
	// ErrUnresolvedDependency is the base error for resolution failures.
	// The concrete failure is a *scope.UnresolvedError wrapping this.
	ErrUnresolvedDependency = errors.New("courier: unresolved dependency")

	// Tenant accessor errors.
	ErrTenantAlreadySet = errors.New("courier: tenant already set for this submission")
	ErrTenantImmutable  = errors.New("courier: execution-side tenant is derived from job metadata and cannot be set")
)
