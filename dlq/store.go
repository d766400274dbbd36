package dlq

import (
	"context"
	"time"

	"github.com/xraph/courier/id"
)

// ListOpts filters and paginates DLQ list queries. Zero values mean
// "no restriction".
type ListOpts struct {
	// Limit caps the number of entries returned.
	Limit int
	// Offset skips that many entries from the start of the result.
	Offset int
	// Queue restricts results to one queue.
	Queue string
	// Tenant restricts results to entries whose frozen metadata carries
	// this tenant.
	Tenant string
}

// Store is the persistence contract for the dead letter queue.
type Store interface {
	// PushDLQ adds a failed job entry to the dead letter queue.
	PushDLQ(ctx context.Context, entry *Entry) error

	// ListDLQ returns entries matching opts, oldest failure first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// GetDLQ retrieves one entry by ID.
	GetDLQ(ctx context.Context, entryID id.DLQID) (*Entry, error)

	// ReplayDLQ records that an entry has been replayed. Re-enqueueing
	// the job itself happens at the service layer.
	ReplayDLQ(ctx context.Context, entryID id.DLQID) error

	// PurgeDLQ deletes entries that failed before the given time and
	// reports how many were removed.
	PurgeDLQ(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the total number of entries.
	CountDLQ(ctx context.Context) (int64, error)
}
