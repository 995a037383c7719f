package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/id"
	"github.com/transseas/conveyor/job"
)

// EnqueueJob stores the job as a Hash and adds it to the queue's Sorted
// Set, scored by run time. A waiting job holding the same dedupe key is
// replaced.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: enqueue check exists: %w", err)
	}
	if exists > 0 {
		return conveyor.ErrJobAlreadyExists
	}

	if j.DedupeKey != "" {
		if err := s.replaceWaiting(ctx, j.DedupeKey); err != nil {
			return err
		}
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobToMap(j))
	pipe.SAdd(ctx, jobIDsKey, jID)
	pipe.ZAdd(ctx, queueKey(j.Queue), goredis.Z{Score: runAtScore(j.RunAt), Member: jID})
	if j.DedupeKey != "" {
		pipe.Set(ctx, dedupeKey(j.DedupeKey), jID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: enqueue job: %w", err)
	}
	return nil
}

// replaceWaiting removes the waiting job currently holding the given
// dedupe key, if any. Running and finished jobs keep their record.
func (s *Store) replaceWaiting(ctx context.Context, key string) error {
	existingID, err := s.client.Get(ctx, dedupeKey(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		return fmt.Errorf("conveyor/redis: dedupe lookup: %w", err)
	}

	existing, err := s.getJobByKey(ctx, jobKey(existingID))
	if err != nil {
		if errors.Is(err, conveyor.ErrJobNotFound) {
			return nil
		}
		return err
	}
	if existing.State != job.StatePending && existing.State != job.StateRetrying {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, jobKey(existingID))
	pipe.SRem(ctx, jobIDsKey, existingID)
	pipe.ZRem(ctx, queueKey(existing.Queue), existingID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: replace waiting job: %w", err)
	}
	return nil
}

// DequeueJobs claims up to limit due jobs from the given queues, sets
// them to running, and returns them. The ZRem on claim is the atomic
// step: at most one worker wins each member.
func (s *Store) DequeueJobs(ctx context.Context, queues []string, limit int) ([]*job.Job, error) {
	now := time.Now().UTC()
	maxScore := strconv.FormatFloat(runAtScore(now), 'f', -1, 64)

	var candidates []*job.Job
	for _, q := range queues {
		ids, err := s.client.ZRangeByScore(ctx, queueKey(q), &goredis.ZRangeBy{
			Min: "-inf",
			Max: maxScore,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("conveyor/redis: dequeue range: %w", err)
		}
		for _, jID := range ids {
			j, getErr := s.getJobByKey(ctx, jobKey(jID))
			if getErr != nil {
				// Stale queue member; drop it.
				s.client.ZRem(ctx, queueKey(q), jID)
				continue
			}
			if j.State != job.StatePending && j.State != job.StateRetrying {
				s.client.ZRem(ctx, queueKey(q), jID)
				continue
			}
			candidates = append(candidates, j)
		}
	}

	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].Priority != candidates[k].Priority {
			return candidates[i].Priority > candidates[k].Priority
		}
		return candidates[i].RunAt.Before(candidates[k].RunAt)
	})

	var claimed []*job.Job
	for _, j := range candidates {
		if limit > 0 && len(claimed) >= limit {
			break
		}
		jID := j.ID.String()
		removed, err := s.client.ZRem(ctx, queueKey(j.Queue), jID).Result()
		if err != nil {
			return claimed, fmt.Errorf("conveyor/redis: dequeue claim: %w", err)
		}
		if removed == 0 {
			// Another worker won this member.
			continue
		}

		j.State = job.StateRunning
		started := now
		j.StartedAt = &started
		_, err = s.client.HSet(ctx, jobKey(jID),
			"state", string(job.StateRunning),
			"started_at", now.Format(time.RFC3339Nano),
			"updated_at", now.Format(time.RFC3339Nano),
		).Result()
		if err != nil {
			return claimed, fmt.Errorf("conveyor/redis: dequeue update: %w", err)
		}
		claimed = append(claimed, j)
	}
	return claimed, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// UpdateJob persists changes to an existing job and keeps the queue
// Sorted Set in sync: waiting states are (re)scheduled at RunAt, all
// other states leave the queue.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: update job exists: %w", err)
	}
	if exists == 0 {
		return conveyor.ErrJobNotFound
	}

	fields := jobToMap(j)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	// Optional timestamps absent from the map must also be cleared from
	// the hash, or a reaped job keeps its old heartbeat.
	var cleared []string
	for field, set := range map[string]bool{
		"started_at":   j.StartedAt != nil,
		"completed_at": j.CompletedAt != nil,
		"heartbeat_at": j.HeartbeatAt != nil,
	} {
		if !set {
			cleared = append(cleared, field)
		}
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if len(cleared) > 0 {
		pipe.HDel(ctx, key, cleared...)
	}
	if j.State == job.StatePending || j.State == job.StateRetrying {
		pipe.ZAdd(ctx, queueKey(j.Queue), goredis.Z{Score: runAtScore(j.RunAt), Member: jID})
	} else {
		pipe.ZRem(ctx, queueKey(j.Queue), jID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: update job: %w", err)
	}
	return nil
}

// DeleteJob removes a job by ID, along with its queue membership and
// dedupe index entry.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	key := jobKey(jID)

	vals, err := s.client.HMGet(ctx, key, "queue", "dedupe_key").Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: delete job lookup: %w", err)
	}
	q, ok := vals[0].(string)
	if !ok {
		return conveyor.ErrJobNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, jobIDsKey, jID)
	pipe.ZRem(ctx, queueKey(q), jID)
	if dk, ok := vals[1].(string); ok && dk != "" {
		pipe.Del(ctx, dedupeKey(dk))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: delete job: %w", err)
	}
	return nil
}

// CancelByDedupeKey removes a waiting job holding the given dedupe key
// and returns it. Returns (nil, nil) if no waiting job holds the key.
func (s *Store) CancelByDedupeKey(ctx context.Context, key string) (*job.Job, error) {
	jID, err := s.client.Get(ctx, dedupeKey(key)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("conveyor/redis: cancel lookup: %w", err)
	}

	j, err := s.getJobByKey(ctx, jobKey(jID))
	if err != nil {
		if errors.Is(err, conveyor.ErrJobNotFound) {
			s.client.Del(ctx, dedupeKey(key))
			return nil, nil
		}
		return nil, err
	}
	if j.State != job.StatePending && j.State != job.StateRetrying {
		return nil, nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, jobKey(jID))
	pipe.SRem(ctx, jobIDsKey, jID)
	pipe.ZRem(ctx, queueKey(j.Queue), jID)
	pipe.Del(ctx, dedupeKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("conveyor/redis: cancel job: %w", err)
	}

	j.State = job.StateCancelled
	return j, nil
}

// ListJobsByState returns jobs matching the given state.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: list jobs smembers: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // skip missing
		}
		if j.State != state {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
	})

	if opts.Offset > 0 && opts.Offset < len(jobs) {
		jobs = jobs[opts.Offset:]
	} else if opts.Offset >= len(jobs) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(jobs) {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// HeartbeatJob updates the heartbeat timestamp for a running job.
func (s *Store) HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	key := jobKey(jobID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: heartbeat exists: %w", err)
	}
	if exists == 0 {
		return conveyor.ErrJobNotFound
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.client.HSet(ctx, key,
		"heartbeat_at", now,
		"worker_id", workerID.String(),
		"updated_at", now,
	).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: heartbeat job: %w", err)
	}
	return nil
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// the threshold.
func (s *Store) ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*job.Job, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: reap smembers: %w", err)
	}

	var stale []*job.Job
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue
		}
		if j.State != job.StateRunning {
			continue
		}
		if j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff) {
			stale = append(stale, j)
		}
	}
	return stale, nil
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("conveyor/redis: count smembers: %w", err)
	}

	var count int64
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue
		}
		if opts.State != "" && j.State != opts.State {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		count++
	}
	return count, nil
}

// ── helpers ──

// runAtScore orders queue members by due time. Jobs with a zero RunAt
// are due immediately.
func runAtScore(runAt time.Time) float64 {
	if runAt.IsZero() {
		return 0
	}
	return float64(runAt.UnixMilli())
}

func jobToMap(j *job.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":                 j.ID.String(),
		"kind":               j.Kind,
		"queue":              j.Queue,
		"payload":            string(j.Payload),
		"state":              string(j.State),
		"priority":           strconv.Itoa(j.Priority),
		"dedupe_key":         j.DedupeKey,
		"max_attempts":       strconv.Itoa(j.MaxAttempts),
		"attempts":           strconv.Itoa(j.Attempts),
		"last_error":         j.LastError,
		"worker_id":          j.WorkerID.String(),
		"run_at":             j.RunAt.Format(time.RFC3339Nano),
		"timeout":            strconv.FormatInt(int64(j.Timeout), 10),
		"remove_on_complete": strconv.FormatBool(j.RemoveOnComplete),
		"created_at":         j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":         j.UpdatedAt.Format(time.RFC3339Nano),
	}
	if j.StartedAt != nil {
		m["started_at"] = j.StartedAt.Format(time.RFC3339Nano)
	}
	if j.CompletedAt != nil {
		m["completed_at"] = j.CompletedAt.Format(time.RFC3339Nano)
	}
	if j.HeartbeatAt != nil {
		m["heartbeat_at"] = j.HeartbeatAt.Format(time.RFC3339Nano)
	}
	return m
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, conveyor.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: parse job id: %w", err)
	}

	priority, _ := strconv.Atoi(m["priority"])           //nolint:errcheck // best-effort parse from trusted Redis data
	maxAttempts, _ := strconv.Atoi(m["max_attempts"])    //nolint:errcheck // best-effort parse from trusted Redis data
	attempts, _ := strconv.Atoi(m["attempts"])           //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data
	removeOnComplete, _ := strconv.ParseBool(m["remove_on_complete"]) //nolint:errcheck // best-effort parse from trusted Redis data

	runAt, _ := time.Parse(time.RFC3339Nano, m["run_at"])         //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	j := &job.Job{
		Entity: conveyor.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:               jID,
		Kind:             m["kind"],
		Queue:            m["queue"],
		Payload:          []byte(m["payload"]),
		State:            job.State(m["state"]),
		Priority:         priority,
		DedupeKey:        m["dedupe_key"],
		MaxAttempts:      maxAttempts,
		Attempts:         attempts,
		LastError:        m["last_error"],
		RunAt:            runAt,
		Timeout:          time.Duration(timeout),
		RemoveOnComplete: removeOnComplete,
	}

	if wid := m["worker_id"]; wid != "" {
		j.WorkerID, _ = id.ParseWorkerID(wid) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.StartedAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.CompletedAt = &t
	}
	if v := m["heartbeat_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.HeartbeatAt = &t
	}

	return j, nil
}
