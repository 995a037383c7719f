package job

import "time"

// Options configures per-job behavior such as attempts, queue, and delay.
type Options struct {
	// MaxAttempts is the total number of executions allowed before the
	// job is archived as a terminal failure.
	MaxAttempts int

	// Queue is the queue name this job should be enqueued to.
	Queue string

	// Priority determines dequeue ordering. Higher values are processed first.
	Priority int

	// Timeout is the maximum duration a single attempt may run before
	// its context is cancelled. Zero disables the watchdog.
	Timeout time.Duration

	// Delay postpones eligibility for execution. Zero means immediate.
	Delay time.Duration

	// DedupeKey makes the enqueue idempotent per key (see Job.DedupeKey).
	DedupeKey string

	// RemoveOnComplete deletes the job record after a successful run.
	RemoveOnComplete bool
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		Queue:       "default",
		Priority:    0,
		Timeout:     5 * time.Minute,
	}
}

// Option is a functional option for configuring a job definition or a
// single enqueue.
type Option func(*Options)

// WithMaxAttempts sets the total execution budget.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		o.MaxAttempts = n
	}
}

// WithQueue sets the queue name for the job.
func WithQueue(q string) Option {
	return func(o *Options) {
		o.Queue = q
	}
}

// WithPriority sets the job priority. Higher values are processed first.
func WithPriority(p int) Option {
	return func(o *Options) {
		o.Priority = p
	}
}

// WithTimeout sets the maximum execution duration per attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithDelay postpones the job's first execution by d.
func WithDelay(d time.Duration) Option {
	return func(o *Options) {
		o.Delay = d
	}
}

// WithDedupeKey sets the deduplication key. Enqueuing with a key that
// already has a waiting job replaces that job; Cancel removes it.
func WithDedupeKey(key string) Option {
	return func(o *Options) {
		o.DedupeKey = key
	}
}

// WithRemoveOnComplete deletes the job record after a successful run.
func WithRemoveOnComplete() Option {
	return func(o *Options) {
		o.RemoveOnComplete = true
	}
}
