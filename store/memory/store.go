// Package memory provides a fully in-memory store implementation.
// Safe for concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/chat"
	"github.com/transseas/conveyor/failure"
	"github.com/transseas/conveyor/id"
	"github.com/transseas/conveyor/job"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ job.Store     = (*Store)(nil)
	_ failure.Store = (*Store)(nil)
	_ chat.Log      = (*Store)(nil)
	_ chat.Store    = (*Store)(nil)
)

// Store is an in-memory implementation of the queue-side store plus
// the durable chat store, so a single instance can back a whole engine
// in tests.
type Store struct {
	mu sync.RWMutex

	jobs     map[string]*job.Job
	failures map[string]*failure.Entry
	logs     map[string][]chat.Entry
	messages map[string]*chat.Message
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:     make(map[string]*job.Job),
		failures: make(map[string]*failure.Entry),
		logs:     make(map[string][]chat.Entry),
		messages: make(map[string]*chat.Message),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Ping / Close
// ──────────────────────────────────────────────────

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// EnqueueJob persists a new job in pending state. If the job carries a
// dedupe key held by a waiting job, the waiting job is replaced.
func (m *Store) EnqueueJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return conveyor.ErrJobAlreadyExists
	}

	if j.DedupeKey != "" {
		for k, existing := range m.jobs {
			if existing.DedupeKey != j.DedupeKey {
				continue
			}
			if existing.State == job.StatePending || existing.State == job.StateRetrying {
				delete(m.jobs, k)
			}
		}
	}

	cp := *j
	m.jobs[key] = &cp
	return nil
}

// DequeueJobs atomically claims up to limit due pending jobs from the
// given queues, sets them to running, and returns them.
func (m *Store) DequeueJobs(_ context.Context, queues []string, limit int) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queueSet := make(map[string]struct{}, len(queues))
	for _, q := range queues {
		queueSet[q] = struct{}{}
	}

	now := time.Now().UTC()

	candidates := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.State != job.StatePending && j.State != job.StateRetrying {
			continue
		}
		if !j.RunAt.IsZero() && j.RunAt.After(now) {
			continue
		}
		if len(queueSet) > 0 {
			if _, ok := queueSet[j.Queue]; !ok {
				continue
			}
		}
		candidates = append(candidates, j)
	}

	// Sort: priority DESC, RunAt ASC.
	sort.Slice(candidates, func(i, k int) bool {
		if candidates[i].Priority != candidates[k].Priority {
			return candidates[i].Priority > candidates[k].Priority
		}
		return candidates[i].RunAt.Before(candidates[k].RunAt)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]*job.Job, len(candidates))
	for i, j := range candidates {
		j.State = job.StateRunning
		n := now
		j.StartedAt = &n
		// Return a copy so callers can mutate without racing with the store.
		cp := *j
		result[i] = &cp
	}

	return result, nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, conveyor.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// UpdateJob persists changes to an existing job.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, ok := m.jobs[key]; !ok {
		return conveyor.ErrJobNotFound
	}
	cp := *j
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[key] = &cp
	return nil
}

// DeleteJob removes a job by ID.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	if _, ok := m.jobs[key]; !ok {
		return conveyor.ErrJobNotFound
	}
	delete(m.jobs, key)
	return nil
}

// CancelByDedupeKey removes a waiting job holding the given dedupe key
// and returns it. Returns (nil, nil) if no waiting job holds the key.
func (m *Store) CancelByDedupeKey(_ context.Context, key string) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, j := range m.jobs {
		if j.DedupeKey != key {
			continue
		}
		if j.State != job.StatePending && j.State != job.StateRetrying {
			continue
		}
		delete(m.jobs, k)
		cp := *j
		cp.State = job.StateCancelled
		return &cp, nil
	}
	return nil, nil
}

// ListJobsByState returns jobs matching the given state.
func (m *Store) ListJobsByState(_ context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.State != state {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}

	// Sort by CreatedAt for deterministic output.
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// HeartbeatJob updates the heartbeat timestamp for a running job.
func (m *Store) HeartbeatJob(_ context.Context, jobID id.JobID, _ id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return conveyor.ErrJobNotFound
	}
	now := time.Now().UTC()
	j.HeartbeatAt = &now
	return nil
}

// ReapStaleJobs returns running jobs whose last heartbeat is older than
// the given threshold.
func (m *Store) ReapStaleJobs(_ context.Context, threshold time.Duration) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*job.Job
	for _, j := range m.jobs {
		if j.State != job.StateRunning {
			continue
		}
		if j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff) {
			cp := *j
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

// CountJobs returns the number of jobs matching the given options.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		if opts.State != "" && j.State != opts.State {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Failure Archive Store
// ──────────────────────────────────────────────────

// PushFailure archives a terminally failed job.
func (m *Store) PushFailure(_ context.Context, entry *failure.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.failures[entry.ID.String()] = &cp
	return nil
}

// ListFailures returns archive entries matching the given options.
func (m *Store) ListFailures(_ context.Context, opts failure.ListOpts) ([]*failure.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*failure.Entry, 0, len(m.failures))
	for _, e := range m.failures {
		if opts.Queue != "" && e.Queue != opts.Queue {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].FailedAt.Before(result[k].FailedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// GetFailure retrieves an archive entry by ID.
func (m *Store) GetFailure(_ context.Context, entryID id.FailureID) (*failure.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.failures[entryID.String()]
	if !ok {
		return nil, conveyor.ErrFailureNotFound
	}
	cp := *e
	return &cp, nil
}

// MarkReplayed records that an entry was replayed.
func (m *Store) MarkReplayed(_ context.Context, entryID id.FailureID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.failures[entryID.String()]
	if !ok {
		return conveyor.ErrFailureNotFound
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now
	return nil
}

// PurgeFailures removes entries with FailedAt before the given time.
func (m *Store) PurgeFailures(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, e := range m.failures {
		if e.FailedAt.Before(before) {
			delete(m.failures, key)
			count++
		}
	}
	return count, nil
}

// CountFailures returns the total number of archived entries.
func (m *Store) CountFailures(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.failures)), nil
}

// ──────────────────────────────────────────────────
// Ranked Log (chat.Log)
// ──────────────────────────────────────────────────

// Exists reports whether the given key holds any entries.
func (m *Store) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, ok := m.logs[key]
	return ok && len(entries) > 0, nil
}

// RangeDescWithScores returns all entries under key ordered by score
// descending.
func (m *Store) RangeDescWithScores(_ context.Context, key string) ([]chat.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.logs[key]
	result := make([]chat.Entry, len(entries))
	copy(result, entries)

	sort.SliceStable(result, func(i, k int) bool {
		return result[i].Score > result[k].Score
	})

	return result, nil
}

// AddWithScores writes the given entries under key.
func (m *Store) AddWithScores(_ context.Context, key string, entries []chat.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.logs[key]
	// Sorted-set semantics: adding an existing member updates its score
	// instead of duplicating it.
	byMember := make(map[string]int, len(existing))
	for i, e := range existing {
		byMember[e.Member] = i
	}
	for _, e := range entries {
		if i, ok := byMember[e.Member]; ok {
			existing[i].Score = e.Score
			continue
		}
		existing = append(existing, e)
		byMember[e.Member] = len(existing) - 1
	}
	m.logs[key] = existing
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (m *Store) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.logs, key)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Durable Chat Store (chat.Store)
// ──────────────────────────────────────────────────

// UpsertMessages writes all messages keyed by message id:
// create-if-absent, no-op-if-present. The memory store is trivially
// atomic under its mutex.
func (m *Store) UpsertMessages(_ context.Context, msgs []*chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range msgs {
		if _, exists := m.messages[msg.ID]; exists {
			continue
		}
		cp := *msg
		m.messages[msg.ID] = &cp
	}
	return nil
}

// Messages returns all persisted messages for a conversation, ordered
// by creation time ascending. Test helper.
func (m *Store) Messages(conversationID string) []*chat.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*chat.Message
	for _, msg := range m.messages {
		if msg.ConversationID != conversationID {
			continue
		}
		cp := *msg
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return result
}
