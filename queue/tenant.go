package queue

// TenantConfig throttles one tenant on one queue. The tenant is matched
// against the "tenant_id" entry of each job's frozen metadata.
type TenantConfig struct {
	// QueueName names the queue this config applies to.
	QueueName string

	// TenantID is the tenant being limited.
	TenantID string

	// RateLimit is the tenant's sustained jobs per second.
	RateLimit float64

	// RateBurst is the tenant's token-bucket burst size.
	RateBurst int

	// MaxConcurrency caps the tenant's simultaneous jobs on this queue;
	// zero leaves concurrency unlimited for the tenant.
	MaxConcurrency int
}

// tenantKey builds the map key for a queue+tenant pair.
func tenantKey(queue, tenantID string) string {
	return queue + ":" + tenantID
}

// SetTenantConfig configures rate limits and concurrency for one tenant
// on one queue, replacing any previous configuration for the pair. The
// active count of a reconfigured tenant carries over.
func (m *Manager) SetTenantConfig(cfg TenantConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tenantKey(cfg.QueueName, cfg.TenantID)
	ts := newSlot(cfg.RateLimit, cfg.RateBurst, cfg.MaxConcurrency)
	if existing := m.tenants[key]; existing != nil {
		ts.active = existing.active
	}
	m.tenants[key] = ts
}

// TenantActiveCount returns the current number of active jobs for a
// queue+tenant pair.
func (m *Manager) TenantActiveCount(queue, tenantID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts := m.tenants[tenantKey(queue, tenantID)]; ts != nil {
		return ts.active
	}
	return 0
}
