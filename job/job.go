package job

import (
	"time"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting (possibly delayed) to be
	// picked up by a worker.
	StatePending State = "pending"
	// StateRunning means a worker is currently executing the job.
	StateRunning State = "running"
	// StateCompleted means the job finished successfully.
	StateCompleted State = "completed"
	// StateFailed means the job exhausted its attempt budget (or failed
	// terminally) and will not be retried.
	StateFailed State = "failed"
	// StateRetrying means the job failed but is scheduled for another
	// attempt after backoff.
	StateRetrying State = "retrying"
	// StateCancelled means the job was removed before it ran.
	StateCancelled State = "cancelled"
)

// Job represents one unit of deferred work. The Kind discriminator
// selects the registered handler; Payload carries the kind-specific
// JSON document.
type Job struct {
	conveyor.Entity

	ID       id.JobID `json:"id"`
	Kind     string   `json:"kind"`
	Queue    string   `json:"queue"`
	Payload  []byte   `json:"payload"`
	State    State    `json:"state"`
	Priority int      `json:"priority"`

	// DedupeKey, when non-empty, makes enqueues idempotent: a second
	// enqueue with the same key while the first job is still waiting
	// replaces it instead of duplicating it, and the key can be used to
	// cancel the job before it runs.
	DedupeKey string `json:"dedupe_key,omitempty"`

	// MaxAttempts is the total execution budget, first run included.
	MaxAttempts int `json:"max_attempts"`
	// Attempts counts executions consumed so far.
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`

	WorkerID    id.WorkerID   `json:"worker_id,omitempty"`
	RunAt       time.Time     `json:"run_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	HeartbeatAt *time.Time    `json:"heartbeat_at,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`

	// RemoveOnComplete deletes the record after a successful run
	// instead of retaining it in completed state.
	RemoveOnComplete bool `json:"remove_on_complete,omitempty"`
}
