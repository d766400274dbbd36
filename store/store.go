// Package store declares the composite persistence contract. The job and
// dlq subsystems each own their slice of the interface; a backend
// (postgres, redis, memory) implements Store to serve them all.
package store

import (
	"context"

	"github.com/xraph/courier/dlq"
	"github.com/xraph/courier/job"
)

// Store is the full persistence surface a backend provides: both
// subsystem contracts plus backend lifecycle.
type Store interface {
	job.Store
	dlq.Store

	// Migrate brings the backend schema up to date.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
