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
	"github.com/transseas/conveyor/failure"
	"github.com/transseas/conveyor/id"
)

// PushFailure archives a terminally failed job.
func (s *Store) PushFailure(ctx context.Context, entry *failure.Entry) error {
	eID := entry.ID.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, failureKey(eID), failureToMap(entry))
	pipe.SAdd(ctx, failureIDsKey, eID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: push failure: %w", err)
	}
	return nil
}

// ListFailures returns archive entries matching the given options.
func (s *Store) ListFailures(ctx context.Context, opts failure.ListOpts) ([]*failure.Entry, error) {
	ids, err := s.client.SMembers(ctx, failureIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: list failures: %w", err)
	}

	entries := make([]*failure.Entry, 0, len(ids))
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, failureKey(eID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		e, convErr := mapToFailure(vals)
		if convErr != nil {
			continue
		}
		if opts.Queue != "" && e.Queue != opts.Queue {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, k int) bool {
		return entries[i].FailedAt.Before(entries[k].FailedAt)
	})

	if opts.Offset > 0 && opts.Offset < len(entries) {
		entries = entries[opts.Offset:]
	} else if opts.Offset >= len(entries) && opts.Offset > 0 {
		return nil, nil
	}
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// GetFailure retrieves an archive entry by ID.
func (s *Store) GetFailure(ctx context.Context, entryID id.FailureID) (*failure.Entry, error) {
	vals, err := s.client.HGetAll(ctx, failureKey(entryID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: get failure: %w", err)
	}
	if len(vals) == 0 {
		return nil, conveyor.ErrFailureNotFound
	}
	return mapToFailure(vals)
}

// MarkReplayed records that an entry was replayed.
func (s *Store) MarkReplayed(ctx context.Context, entryID id.FailureID) error {
	key := failureKey(entryID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: mark replayed exists: %w", err)
	}
	if exists == 0 {
		return conveyor.ErrFailureNotFound
	}

	_, err = s.client.HSet(ctx, key,
		"replayed_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: mark replayed: %w", err)
	}
	return nil
}

// PurgeFailures removes archive entries with FailedAt before the given
// time. Returns the number of entries removed.
func (s *Store) PurgeFailures(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.SMembers(ctx, failureIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("conveyor/redis: purge failures smembers: %w", err)
	}

	var purged int64
	for _, eID := range ids {
		key := failureKey(eID)
		failedAtStr, getErr := s.client.HGet(ctx, key, "failed_at").Result()
		if getErr != nil {
			if errors.Is(getErr, goredis.Nil) {
				continue
			}
			return purged, fmt.Errorf("conveyor/redis: purge failures get: %w", getErr)
		}

		failedAt, _ := time.Parse(time.RFC3339Nano, failedAtStr) //nolint:errcheck // best-effort parse from trusted Redis data
		if failedAt.Before(before) {
			pipe := s.client.TxPipeline()
			pipe.Del(ctx, key)
			pipe.SRem(ctx, failureIDsKey, eID)
			if _, pErr := pipe.Exec(ctx); pErr != nil {
				return purged, fmt.Errorf("conveyor/redis: purge failures del: %w", pErr)
			}
			purged++
		}
	}
	return purged, nil
}

// CountFailures returns the total number of archived entries.
func (s *Store) CountFailures(ctx context.Context) (int64, error) {
	count, err := s.client.SCard(ctx, failureIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("conveyor/redis: count failures: %w", err)
	}
	return count, nil
}

// ── helpers ──

func failureToMap(e *failure.Entry) map[string]interface{} {
	m := map[string]interface{}{
		"id":            e.ID.String(),
		"job_id":        e.JobID.String(),
		"kind":          e.Kind,
		"queue":         e.Queue,
		"payload":       string(e.Payload),
		"error":         e.Error,
		"attempts_used": strconv.Itoa(e.AttemptsUsed),
		"max_attempts":  strconv.Itoa(e.MaxAttempts),
		"failed_at":     e.FailedAt.Format(time.RFC3339Nano),
		"created_at":    e.CreatedAt.Format(time.RFC3339Nano),
	}
	if e.ReplayedAt != nil {
		m["replayed_at"] = e.ReplayedAt.Format(time.RFC3339Nano)
	}
	return m
}

func mapToFailure(m map[string]string) (*failure.Entry, error) {
	eID, err := id.ParseFailureID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: parse failure id: %w", err)
	}
	jobID, _ := id.ParseJobID(m["job_id"])                        //nolint:errcheck // best-effort parse from trusted Redis data
	attemptsUsed, _ := strconv.Atoi(m["attempts_used"])           //nolint:errcheck // best-effort parse from trusted Redis data
	maxAttempts, _ := strconv.Atoi(m["max_attempts"])             //nolint:errcheck // best-effort parse from trusted Redis data
	failedAt, _ := time.Parse(time.RFC3339Nano, m["failed_at"])   //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	e := &failure.Entry{
		ID:           eID,
		JobID:        jobID,
		Kind:         m["kind"],
		Queue:        m["queue"],
		Payload:      []byte(m["payload"]),
		Error:        m["error"],
		AttemptsUsed: attemptsUsed,
		MaxAttempts:  maxAttempts,
		FailedAt:     failedAt,
		CreatedAt:    createdAt,
	}

	if v := m["replayed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		e.ReplayedAt = &t
	}
	return e, nil
}
