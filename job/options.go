package job

import "time"

// Options carries the per-job settings applied at enqueue time.
type Options struct {
	// MaxRetries bounds the retry attempts before the job goes to the DLQ.
	MaxRetries int

	// Queue names the queue the job is enqueued to.
	Queue string

	// Priority orders dequeueing; higher runs first.
	Priority int

	// Timeout caps a single execution attempt.
	Timeout time.Duration

	// RunAt defers execution until the given time; zero runs immediately.
	RunAt time.Time

	// Metadata seeds key/value pairs into the job's metadata before the
	// enqueue stages run. Stages may overwrite these keys.
	Metadata map[string]string
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		Queue:      "default",
		Timeout:    5 * time.Minute,
	}
}

// Option mutates Options; pass them to NewDefinition or Enqueue.
type Option func(*Options)

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(o *Options) { o.MaxRetries = n }
}

// WithQueue sets the queue name for the job.
func WithQueue(q string) Option {
	return func(o *Options) { o.Queue = q }
}

// WithPriority sets the job priority. Higher values are processed first.
func WithPriority(p int) Option {
	return func(o *Options) { o.Priority = p }
}

// WithTimeout sets the maximum execution duration for the job.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithRunAt schedules the job for execution at a specific time.
func WithRunAt(t time.Time) Option {
	return func(o *Options) { o.RunAt = t }
}

// WithMetadata seeds one metadata key for this submission. Repeated
// calls accumulate; enqueue stages run afterwards and may overwrite.
func WithMetadata(key, value string) Option {
	return func(o *Options) {
		if o.Metadata == nil {
			o.Metadata = make(map[string]string)
		}
		o.Metadata[key] = value
	}
}
