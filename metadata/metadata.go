// Package metadata implements the key/value side channel attached to a job.
//
// Enqueue stages write to a [Metadata] while a submission is in flight. When
// the descriptor is persisted the metadata is frozen into an immutable
// [Snapshot] that travels with the job and is read — never written — on
// every execution attempt, including retries and DLQ replays.
package metadata

import (
	"maps"
	"sort"
	"sync"

	"github.com/xraph/courier"
)

// TenantKey is the well-known key carrying the submitting tenant's
// identifier. Written by middleware.StampTenant, read by the execution-side
// tenant accessor.
const TenantKey = "tenant_id"

// Metadata is the mutable, submission-time view of a job's metadata.
// It is safe for concurrent use, though enqueue stages run sequentially.
type Metadata struct {
	mu     sync.Mutex
	values map[string]string
	frozen bool
}

// New returns an empty, writable Metadata.
func New() *Metadata {
	return &Metadata{values: make(map[string]string)}
}

// Set writes a key. Later stages may overwrite keys written by earlier ones.
// Returns courier.ErrMetadataFrozen once Freeze has been called.
func (m *Metadata) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frozen {
		return courier.ErrMetadataFrozen
	}
	m.values[key] = value
	return nil
}

// Get returns the value for key and whether it is present.
func (m *Metadata) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of keys written so far.
func (m *Metadata) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

// Freeze marks the metadata read-only and returns the immutable snapshot
// that is persisted with the descriptor. Freeze is idempotent; every call
// returns an equivalent snapshot.
func (m *Metadata) Freeze() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.frozen = true
	return Snapshot(maps.Clone(m.values))
}

// Snapshot is the immutable, persisted form of a job's metadata. The nil
// snapshot is valid and behaves as empty: lookups miss and Keys is empty.
//
// Snapshot is shared read-only between concurrent execution attempts; it
// must never be mutated after the descriptor is persisted. Callers that
// need a mutable copy take one via Clone.
type Snapshot map[string]string

// Get returns the value for key and whether it is present.
func (s Snapshot) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

// Value returns the value for key, or the empty string when absent.
func (s Snapshot) Value(key string) string {
	return s[key]
}

// Keys returns the snapshot's keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys in the snapshot.
func (s Snapshot) Len() int { return len(s) }

// Clone returns an independent mutable copy of the snapshot.
func (s Snapshot) Clone() map[string]string {
	return maps.Clone(map[string]string(s))
}
