package failure

import (
	"context"
	"time"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/id"
	"github.com/transseas/conveyor/job"
)

// Service provides high-level failure archive operations over a Store.
type Service struct {
	store    Store
	jobStore job.Store
}

// NewService creates a failure archive service.
func NewService(store Store, jobStore job.Store) *Service {
	return &Service{store: store, jobStore: jobStore}
}

// Push builds an archive Entry from a terminally failed job and
// persists it. The error string is captured from the final handler error.
func (s *Service) Push(ctx context.Context, j *job.Job, jobErr error) error {
	now := time.Now().UTC()
	entry := &Entry{
		ID:           id.NewFailureID(),
		JobID:        j.ID,
		Kind:         j.Kind,
		Queue:        j.Queue,
		Payload:      j.Payload,
		Error:        jobErr.Error(),
		AttemptsUsed: j.Attempts,
		MaxAttempts:  j.MaxAttempts,
		FailedAt:     now,
		CreatedAt:    now,
	}
	return s.store.PushFailure(ctx, entry)
}

// Replay re-enqueues an archived entry as a new pending job and marks
// the entry as replayed. The new job gets a fresh ID, a zero attempt
// count, and runs immediately.
func (s *Service) Replay(ctx context.Context, entryID id.FailureID) (*job.Job, error) {
	entry, err := s.store.GetFailure(ctx, entryID)
	if err != nil {
		return nil, err
	}

	j := &job.Job{
		Entity:      conveyor.NewEntity(),
		ID:          id.NewJobID(),
		Kind:        entry.Kind,
		Queue:       entry.Queue,
		Payload:     entry.Payload,
		State:       job.StatePending,
		MaxAttempts: entry.MaxAttempts,
		RunAt:       time.Now().UTC(),
	}

	if err := s.jobStore.EnqueueJob(ctx, j); err != nil {
		return nil, err
	}

	if err := s.store.MarkReplayed(ctx, entryID); err != nil {
		// The job is already enqueued. Report but keep the job.
		return j, err
	}

	return j, nil
}

// Store returns the underlying archive store for direct access to
// List, Get, Purge, and Count operations.
func (s *Service) Store() Store {
	return s.store
}
