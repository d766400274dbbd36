package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-queue behaviour such as rate limiting and concurrency.
type Config struct {
	// Name is the queue identifier (must match the job.Queue field).
	Name string

	// MaxConcurrency limits how many jobs from this queue may run
	// simultaneously across the local worker pool. Zero means no
	// queue-specific limit (pool-wide concurrency still applies).
	MaxConcurrency int

	// RateLimit is the maximum sustained jobs per second that may be
	// dequeued from this queue. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// slot is the runtime admission state shared by queue-level and
// tenant-level limits: an optional token bucket plus an active counter
// against an optional cap.
type slot struct {
	limiter *rate.Limiter
	maxConc int
	active  int
}

func newSlot(rateLimit float64, burst, maxConc int) *slot {
	s := &slot{maxConc: maxConc}
	if rateLimit > 0 {
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rateLimit), burst)
	}
	return s
}

// admit reports whether another job may run under this slot's limits.
// It does not take the slot; the caller increments active only once all
// applicable slots have admitted.
func (s *slot) admit() bool {
	if s.limiter != nil && !s.limiter.Allow() {
		return false
	}
	return s.maxConc <= 0 || s.active < s.maxConc
}

func (s *slot) free() {
	if s.active > 0 {
		s.active--
	}
}

// Manager controls per-queue and per-tenant rate limiting and concurrency.
// It is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	queues  map[string]*slot
	tenants map[string]*slot
}

// NewManager creates a Manager with the given queue configurations.
// Queues not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		queues:  make(map[string]*slot, len(configs)),
		tenants: make(map[string]*slot),
	}
	for _, cfg := range configs {
		m.queues[cfg.Name] = newSlot(cfg.RateLimit, cfg.RateBurst, cfg.MaxConcurrency)
	}
	return m
}

// Acquire checks rate limits and concurrency for the given queue and
// tenant. The tenant is the value recorded in the job's metadata at
// enqueue time; jobs without one are only subject to queue-level limits.
// On admission the active counters are incremented and the caller MUST
// call Release when the job completes.
func (m *Manager) Acquire(queue, tenantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	qs := m.queues[queue]
	if qs != nil && !qs.admit() {
		return false
	}

	var ts *slot
	if tenantID != "" {
		ts = m.tenants[tenantKey(queue, tenantID)]
		if ts != nil && !ts.admit() {
			return false
		}
	}

	if qs != nil {
		qs.active++
	}
	if ts != nil {
		ts.active++
	}
	return true
}

// Release decrements the active job count for the queue and tenant.
func (m *Manager) Release(queue, tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if qs := m.queues[queue]; qs != nil {
		qs.free()
	}
	if tenantID != "" {
		if ts := m.tenants[tenantKey(queue, tenantID)]; ts != nil {
			ts.free()
		}
	}
}

// SetQueueConfig dynamically updates (or creates) a queue configuration.
// The active count of a reconfigured queue carries over.
func (m *Manager) SetQueueConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	qs := newSlot(cfg.RateLimit, cfg.RateBurst, cfg.MaxConcurrency)
	if existing := m.queues[cfg.Name]; existing != nil {
		qs.active = existing.active
	}
	m.queues[cfg.Name] = qs
}

// ActiveCount returns the current number of active jobs for a queue.
func (m *Manager) ActiveCount(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if qs := m.queues[queue]; qs != nil {
		return qs.active
	}
	return 0
}
