package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
)

// EnqueueFunc is the callback the scheduler uses to enqueue jobs.
// This breaks the import cycle: the engine provides the implementation.
type EnqueueFunc func(ctx context.Context, name string, payload []byte, opts ...job.Option) (id.JobID, error)

// Emitter emits cron lifecycle events.
// ext.Registry satisfies this interface via EmitCronFired.
type Emitter interface {
	EmitCronFired(ctx context.Context, entryName string, jobID id.JobID)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
// Exported for use by engine.RegisterCron.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Scheduler fires registered cron entries on a tick loop. Entries are
// process-local: every instance running the same entries will fire them
// independently.
type Scheduler struct {
	enqueue EnqueueFunc
	emitter Emitter
	logger  *slog.Logger

	tickInterval time.Duration

	mu      sync.Mutex
	entries map[string]*Entry
	// parsed caches the schedule per entry name.
	parsed  map[string]cronlib.Schedule
	running bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(enqueue EnqueueFunc, emitter Emitter, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		enqueue:      enqueue,
		emitter:      emitter,
		logger:       logger,
		tickInterval: 1 * time.Second,
		entries:      make(map[string]*Entry),
		parsed:       make(map[string]cronlib.Schedule),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a cron entry. The schedule is parsed and NextRunAt is
// computed immediately. Adding a second entry with the same name returns
// courier.ErrDuplicateCron.
func (s *Scheduler) Add(entry *Entry) error {
	sched, err := ParseSchedule(entry.Schedule)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.Name]; exists {
		return courier.ErrDuplicateCron
	}

	if entry.ID.IsNil() {
		entry.ID = id.NewCronID()
	}
	next := sched.Next(time.Now().UTC())
	entry.NextRunAt = &next

	s.entries[entry.Name] = entry
	s.parsed[entry.Name] = sched
	return nil
}

// Remove deletes a cron entry by name. Returns courier.ErrCronNotFound
// if no entry with that name is registered.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; !ok {
		return courier.ErrCronNotFound
	}
	delete(s.entries, name)
	delete(s.parsed, name)
	return nil
}

// SetEnabled enables or disables a cron entry by name.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[name]
	if !ok {
		return courier.ErrCronNotFound
	}
	entry.Enabled = enabled
	return nil
}

// Entries returns a snapshot of all registered entries. The returned
// entries are copies, detached from the live ones the tick loop advances.
func (s *Scheduler) Entries() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		cp := *e
		cp.Metadata = e.Metadata.Clone()
		if e.LastRunAt != nil {
			ts := *e.LastRunAt
			cp.LastRunAt = &ts
		}
		if e.NextRunAt != nil {
			ts := *e.NextRunAt
			cp.NextRunAt = &ts
		}
		out = append(out, &cp)
	}
	return out
}

// Start launches the cron tick goroutine. Calling Start on a scheduler
// that is already running is a no-op.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true

	s.wg.Add(1)
	go s.tickLoop()
	s.logger.Info("cron scheduler started",
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the scheduler to stop and waits for the loop to finish.
// Stopping a scheduler that is not running is a no-op, so Stop is safe to
// call more than once.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
	return nil
}

// tickLoop fires on each tick interval and processes due cron entries.
func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick fires every due entry. Entries fire concurrently; a slow enqueue on
// one entry must not delay the others past their schedules.
func (s *Scheduler) tick() {
	now := time.Now().UTC()

	s.mu.Lock()
	var due []*Entry
	for _, entry := range s.entries {
		if !entry.Enabled {
			continue
		}
		if entry.NextRunAt == nil || entry.NextRunAt.After(now) {
			continue
		}
		// Advance NextRunAt before firing so a slow enqueue cannot
		// double-fire the entry on the next tick.
		sched := s.parsed[entry.Name]
		next := sched.Next(now)
		entry.NextRunAt = &next
		entry.LastRunAt = &now
		due = append(due, entry)
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}

	var g errgroup.Group
	for _, entry := range due {
		g.Go(func() error {
			s.fireEntry(context.Background(), entry)
			return nil
		})
	}
	_ = g.Wait()
}

// fireEntry enqueues the entry's job with its metadata template applied.
func (s *Scheduler) fireEntry(ctx context.Context, entry *Entry) {
	opts := make([]job.Option, 0, 1+entry.Metadata.Len())
	if entry.Queue != "" {
		opts = append(opts, job.WithQueue(entry.Queue))
	}
	for _, k := range entry.Metadata.Keys() {
		opts = append(opts, job.WithMetadata(k, entry.Metadata.Value(k)))
	}

	jobID, enqErr := s.enqueue(ctx, entry.JobName, entry.Payload, opts...)
	if enqErr != nil {
		s.logger.Error("cron enqueue error",
			slog.String("cron_name", entry.Name),
			slog.String("job_name", entry.JobName),
			slog.String("error", enqErr.Error()),
		)
		return
	}

	if s.emitter != nil {
		s.emitter.EmitCronFired(ctx, entry.Name, jobID)
	}

	s.logger.Info("cron fired",
		slog.String("cron_name", entry.Name),
		slog.String("job_name", entry.JobName),
		slog.String("job_id", jobID.String()),
	)
}
