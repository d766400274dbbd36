package courier

import "time"

// Config holds the runtime settings for a Dispatcher's worker pool.
type Config struct {
	// Concurrency caps how many jobs run at the same time.
	Concurrency int

	// Queues lists the queues the dispatcher polls.
	Queues []string

	// PollInterval is the wait between polls when no work is available.
	PollInterval time.Duration

	// ShutdownTimeout bounds the wait for in-flight jobs during Stop.
	ShutdownTimeout time.Duration

	// HeartbeatInterval is how often running jobs record a heartbeat.
	HeartbeatInterval time.Duration

	// StaleJobThreshold is the heartbeat silence after which a running
	// job counts as abandoned and is reset to pending.
	StaleJobThreshold time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:       10,
		Queues:            []string{"default"},
		PollInterval:      time.Second,
		ShutdownTimeout:   30 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		StaleJobThreshold: 30 * time.Second,
	}
}
