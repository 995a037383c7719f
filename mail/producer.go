package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/transseas/conveyor/job"
)

const day = 24 * time.Hour

// followUpDelays maps reminder step to its delay after signup.
var followUpDelays = map[int]time.Duration{
	1: 2 * day,
	2: 5 * day,
	3: 10 * day,
}

// Enqueuer is the enqueue surface the producer needs. *engine.Engine
// satisfies it.
type Enqueuer interface {
	EnqueueRaw(ctx context.Context, kind string, payload []byte, opts ...job.Option) (*job.Job, error)
}

// Canceler removes waiting jobs by dedupe key. *engine.Engine
// satisfies it.
type Canceler interface {
	Cancel(ctx context.Context, dedupeKey string) (*job.Job, error)
}

// FollowUpKey returns the dedupe key of one reminder step for a user.
func FollowUpKey(step int, userID string) string {
	return fmt.Sprintf("followup%d:%s", step, userID)
}

// ScheduleFollowUps enqueues the three-step reminder sequence for a
// user at 2, 5, and 10 days out. Scheduling again for the same user
// replaces the still-waiting steps instead of duplicating them.
func ScheduleFollowUps(ctx context.Context, e Enqueuer, userID, email string) error {
	for step := 1; step <= 3; step++ {
		payload, err := json.Marshal(FollowUpPayload{UserID: userID, Email: email, Step: step})
		if err != nil {
			return fmt.Errorf("marshal follow-up step %d: %w", step, err)
		}
		_, err = e.EnqueueRaw(ctx, KindFollowUpReminder, payload,
			job.WithDedupeKey(FollowUpKey(step, userID)),
			job.WithDelay(followUpDelays[step]),
		)
		if err != nil {
			return fmt.Errorf("schedule follow-up step %d for %s: %w", step, userID, err)
		}
	}
	return nil
}

// CancelFollowUps removes every still-waiting reminder step for a
// user. Steps that already fired are left alone.
func CancelFollowUps(ctx context.Context, c Canceler, userID string) error {
	for step := 1; step <= 3; step++ {
		if _, err := c.Cancel(ctx, FollowUpKey(step, userID)); err != nil {
			return fmt.Errorf("cancel follow-up step %d for %s: %w", step, userID, err)
		}
	}
	return nil
}
