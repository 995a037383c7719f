//go:build integration

package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/chat"
	"github.com/transseas/conveyor/failure"
	"github.com/transseas/conveyor/id"
	"github.com/transseas/conveyor/job"
	redisstore "github.com/transseas/conveyor/store/redis"
)

// setupTestStore starts a Redis container and returns a connected Store.
func setupTestStore(t *testing.T) *redisstore.Store {
	t.Helper()

	ctx := context.Background()

	container, err := redismodule.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}
	opts, err := goredis.ParseURL(connStr)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}

	client := goredis.NewClient(opts)
	t.Cleanup(func() {
		_ = client.Close()
	})

	s := redisstore.New(client)
	if pingErr := s.Ping(ctx); pingErr != nil {
		t.Fatalf("ping: %v", pingErr)
	}
	return s
}

func newTestJob(kind, queue string) *job.Job {
	return &job.Job{
		Entity:      conveyor.NewEntity(),
		ID:          id.NewJobID(),
		Kind:        kind,
		Queue:       queue,
		Payload:     []byte(`{}`),
		State:       job.StatePending,
		MaxAttempts: 3,
		RunAt:       time.Now().UTC(),
	}
}

func TestJobStore_EnqueueAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	j := newTestJob("verify-otp", "mail")
	j.Priority = 5

	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if dupErr := s.EnqueueJob(ctx, j); !errors.Is(dupErr, conveyor.ErrJobAlreadyExists) {
		t.Fatalf("expected ErrJobAlreadyExists, got: %v", dupErr)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Kind != "verify-otp" {
		t.Fatalf("kind = %q", got.Kind)
	}
	if got.Priority != 5 {
		t.Fatalf("priority = %d", got.Priority)
	}
}

func TestJobStore_DequeueOrderAndEligibility(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	low := newTestJob("job-low", "default")
	high := newTestJob("job-high", "default")
	high.Priority = 10
	delayed := newTestJob("job-delayed", "default")
	delayed.RunAt = time.Now().UTC().Add(time.Hour)

	for _, j := range []*job.Job{low, high, delayed} {
		if err := s.EnqueueJob(ctx, j); err != nil {
			t.Fatalf("enqueue %s: %v", j.Kind, err)
		}
	}

	dequeued, err := s.DequeueJobs(ctx, []string{"default"}, 10)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(dequeued) != 2 {
		t.Fatalf("dequeued %d jobs, want 2 (delayed not eligible)", len(dequeued))
	}
	if dequeued[0].Kind != "job-high" {
		t.Fatalf("first = %q, want the high-priority job", dequeued[0].Kind)
	}
	if dequeued[0].State != job.StateRunning {
		t.Fatalf("state = %q, want running", dequeued[0].State)
	}

	// Nothing due is left.
	again, err := s.DequeueJobs(ctx, []string{"default"}, 10)
	if err != nil {
		t.Fatalf("dequeue again: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected empty, got %d", len(again))
	}
}

func TestJobStore_RetryingJobRequeues(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	j := newTestJob("flaky", "default")
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, err := s.DequeueJobs(ctx, []string{"default"}, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %v (%d)", err, len(claimed))
	}

	// Push it back with a due retry time.
	claimed[0].State = job.StateRetrying
	claimed[0].Attempts = 1
	claimed[0].RunAt = time.Now().UTC().Add(-time.Second)
	if err := s.UpdateJob(ctx, claimed[0]); err != nil {
		t.Fatalf("update: %v", err)
	}

	retried, err := s.DequeueJobs(ctx, []string{"default"}, 1)
	if err != nil {
		t.Fatalf("dequeue retry: %v", err)
	}
	if len(retried) != 1 || retried[0].Attempts != 1 {
		t.Fatalf("expected the retrying job back, got %+v", retried)
	}
}

func TestJobStore_DedupeReplaceAndCancel(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	j1 := newTestJob("follow-up-reminder", "mail")
	j1.DedupeKey = "followup1:user-1"
	j1.RunAt = time.Now().UTC().Add(48 * time.Hour)
	if err := s.EnqueueJob(ctx, j1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	j2 := newTestJob("follow-up-reminder", "mail")
	j2.DedupeKey = "followup1:user-1"
	j2.RunAt = time.Now().UTC().Add(48 * time.Hour)
	if err := s.EnqueueJob(ctx, j2); err != nil {
		t.Fatalf("enqueue replacement: %v", err)
	}

	if _, err := s.GetJob(ctx, j1.ID); !errors.Is(err, conveyor.ErrJobNotFound) {
		t.Fatalf("expected first job replaced, got: %v", err)
	}

	cancelled, err := s.CancelByDedupeKey(ctx, "followup1:user-1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled == nil || cancelled.ID.String() != j2.ID.String() {
		t.Fatalf("expected replacement cancelled, got %+v", cancelled)
	}
	if cancelled.State != job.StateCancelled {
		t.Fatalf("state = %q", cancelled.State)
	}

	// Consumed key is a no-op.
	cancelled, err = s.CancelByDedupeKey(ctx, "followup1:user-1")
	if err != nil {
		t.Fatalf("cancel no-op: %v", err)
	}
	if cancelled != nil {
		t.Fatalf("expected nil, got %+v", cancelled)
	}
}

func TestJobStore_HeartbeatAndReap(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	j := newTestJob("long-runner", "default")
	j.State = job.StateRunning
	old := time.Now().UTC().Add(-2 * time.Minute)
	j.HeartbeatAt = &old
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	stale, err := s.ReapStaleJobs(ctx, time.Minute)
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale, got %d", len(stale))
	}

	if err := s.HeartbeatJob(ctx, j.ID, id.NewWorkerID()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	stale, err = s.ReapStaleJobs(ctx, time.Minute)
	if err != nil {
		t.Fatalf("reap after heartbeat: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected 0 stale, got %d", len(stale))
	}
}

func TestFailureStore_PushPurgeCount(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := &failure.Entry{
			ID:           id.NewFailureID(),
			JobID:        id.NewJobID(),
			Kind:         "send-rfq",
			Queue:        "mail",
			Payload:      []byte(`{}`),
			Error:        "relay unavailable",
			AttemptsUsed: 3,
			MaxAttempts:  3,
			FailedAt:     time.Now().UTC().Add(-time.Duration(i) * time.Hour),
			CreatedAt:    time.Now().UTC(),
		}
		if err := s.PushFailure(ctx, entry); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	count, err := s.CountFailures(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	purged, err := s.PurgeFailures(ctx, time.Now().UTC().Add(-90*time.Minute))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
}

func TestRankedLog_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	key := chat.LiveKey("conv-1")
	entries := []chat.Entry{
		{Member: `{"id":"m1"}`, Score: 100},
		{Member: `{"id":"m2"}`, Score: 200},
		{Member: `{"id":"m3"}`, Score: 300},
	}
	if err := s.AddWithScores(ctx, key, entries); err != nil {
		t.Fatalf("add: %v", err)
	}

	exists, err := s.Exists(ctx, key)
	if err != nil || !exists {
		t.Fatalf("exists = %v, %v", exists, err)
	}

	got, err := s.RangeDescWithScores(ctx, key)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0].Member != `{"id":"m3"}` {
		t.Fatalf("first = %q, want newest", got[0].Member)
	}

	if err := s.Delete(ctx, key, chat.BackupKey("conv-1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	exists, err = s.Exists(ctx, key)
	if err != nil || exists {
		t.Fatalf("exists after delete = %v, %v", exists, err)
	}
}
