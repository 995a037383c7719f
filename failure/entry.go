package failure

import (
	"time"

	"github.com/transseas/conveyor/id"
)

// Entry represents a job that failed terminally — either its attempt
// budget ran out or the failure was classified as non-retryable — and
// was archived for operator inspection instead of being discarded.
type Entry struct {
	ID           id.FailureID `json:"id"`
	JobID        id.JobID     `json:"job_id"`
	Kind         string       `json:"kind"`
	Queue        string       `json:"queue"`
	Payload      []byte       `json:"payload"`
	Error        string       `json:"error"`
	AttemptsUsed int          `json:"attempts_used"`
	MaxAttempts  int          `json:"max_attempts"`
	FailedAt     time.Time    `json:"failed_at"`
	ReplayedAt   *time.Time   `json:"replayed_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
