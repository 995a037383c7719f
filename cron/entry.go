package cron

import (
	"time"

	"github.com/transseas/conveyor/id"
)

// Entry is one recurring schedule: fire the given job kind with the
// given payload every time the cron expression matches.
type Entry struct {
	ID        id.CronID
	Name      string
	Schedule  string
	Kind      string
	Queue     string
	Payload   []byte
	Enabled   bool
	LastRunAt *time.Time
	NextRunAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
