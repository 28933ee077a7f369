package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// JobFunc is a single run of a recurring job. The run time is injected so
// jobs that reason about time (like a reconciliation sweep) are testable
// without real wall-clock waiting.
type JobFunc func(ctx context.Context, now time.Time) error

// Runner drives registered recurring jobs on their schedules. It is the
// scheduler boundary for background work: jobs never share state with
// request handling and a failing run only logs, then waits for the next
// tick.
type Runner struct {
	mu       sync.RWMutex
	jobs     map[string]*job
	interval time.Duration
	clock    func() time.Time
	log      *slog.Logger
}

type job struct {
	name     string
	schedule Schedule
	fn       JobFunc
	nextRun  time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCheckInterval sets how often the runner polls for due jobs.
func WithCheckInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithClock overrides the runner's time source, for tests.
func WithClock(clock func() time.Time) RunnerOption {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRunner creates a job runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		jobs:     make(map[string]*job),
		interval: 30 * time.Second,
		clock:    func() time.Time { return time.Now().UTC() },
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddJob registers a recurring job. The first run happens one schedule step
// after registration.
func (r *Runner) AddJob(name string, sched Schedule, fn JobFunc) error {
	if name == "" {
		return ErrJobNameRequired
	}
	if fn == nil {
		return ErrJobFuncRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[name]; exists {
		return ErrJobAlreadyRegistered
	}

	now := r.clock()
	r.jobs[name] = &job{
		name:     name,
		schedule: sched,
		fn:       fn,
		nextRun:  sched.Next(now),
	}

	r.log.Info("registered recurring job",
		slog.String("job", name),
		slog.String("schedule", sched.String()))
	return nil
}

// Start blocks, polling for due jobs until the context is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.RLock()
	jobCount := len(r.jobs)
	r.mu.RUnlock()
	if jobCount == 0 {
		return ErrNoJobsRegistered
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Check immediately on start so short schedules don't wait a full tick.
	r.runDue(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("job runner shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.runDue(ctx)
		}
	}
}

// RunJobNow runs a registered job once, outside its schedule. The next
// scheduled run is unaffected. Used for operational "sweep now" triggers.
func (r *Runner) RunJobNow(ctx context.Context, name string) error {
	r.mu.RLock()
	j, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return r.runJob(ctx, j, r.clock())
}

func (r *Runner) runDue(ctx context.Context) {
	now := r.clock()

	r.mu.Lock()
	var due []*job
	for _, j := range r.jobs {
		if !j.nextRun.After(now) {
			due = append(due, j)
			j.nextRun = j.schedule.Next(now)
		}
	}
	r.mu.Unlock()

	for _, j := range due {
		if err := r.runJob(ctx, j, now); err != nil {
			r.log.Error("recurring job run failed",
				slog.String("job", j.name),
				slog.Any("error", err))
		}
	}
}

func (r *Runner) runJob(ctx context.Context, j *job, now time.Time) (err error) {
	defer func() {
		// A panicking job must not take the runner down with it.
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %q panicked: %v\n%s", j.name, rec, debug.Stack())
		}
	}()
	return j.fn(ctx, now)
}
