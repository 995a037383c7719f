package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/transseas/conveyor/job"
)

// KindSweepConversations is the job kind that fans out persistence
// jobs for every conversation with a pending log.
const KindSweepConversations = "sweep-conversations"

// SweepPayload is the payload of a sweep-conversations job. It carries
// no parameters; the sweep always covers every pending conversation.
type SweepPayload struct{}

// KeyScanner lists cache keys matching a glob-style pattern.
type KeyScanner interface {
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

// Enqueuer is the job submission surface the sweeper needs. It is
// satisfied by *engine.Engine.
type Enqueuer interface {
	EnqueueRaw(ctx context.Context, kind string, payload []byte, opts ...job.Option) (*job.Job, error)
}

// Sweeper finds conversations with a live or backup log still in the
// cache and enqueues one persist-conversation job per conversation.
// It is the catch-up path: conversations whose triggered persistence
// job was lost (or never enqueued) are picked up on the next sweep.
type Sweeper struct {
	scanner KeyScanner
	jobs    Enqueuer
	logger  *slog.Logger
}

// NewSweeper creates a Sweeper over the given key scanner.
func NewSweeper(scanner KeyScanner, jobs Enqueuer, logger *slog.Logger) *Sweeper {
	return &Sweeper{scanner: scanner, jobs: jobs, logger: logger}
}

// Definition returns the typed job definition for the sweep.
func (s *Sweeper) Definition() *job.Definition[SweepPayload] {
	return job.NewDefinition(KindSweepConversations,
		func(ctx context.Context, _ SweepPayload) error {
			n, err := s.Sweep(ctx)
			if err != nil {
				return err
			}
			s.logger.Info("conversation sweep done", slog.Int("enqueued", n))
			return nil
		},
		job.WithQueue(Queue),
	)
}

// Register registers the sweeper's job definition with the registry.
func (s *Sweeper) Register(reg *job.Registry) {
	job.RegisterDefinition(reg, s.Definition())
}

// Sweep enqueues a persist-conversation job for every conversation
// that still has a live or backup log, and returns how many were
// enqueued. Each job carries a dedupe key, so a sweep overlapping a
// still waiting job from a previous sweep replaces it instead of
// stacking duplicates.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	keys, err := s.scanner.ScanKeys(ctx, liveKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan conversation keys: %w", err)
	}

	// The backup prefix shares the live prefix, so one scan returns
	// both kinds of key. Collapse them to unique conversation ids.
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		var convID string
		if strings.HasPrefix(key, backupKeyPrefix) {
			convID = strings.TrimPrefix(key, backupKeyPrefix)
		} else {
			convID = strings.TrimPrefix(key, liveKeyPrefix)
		}
		if convID == "" {
			continue
		}
		seen[convID] = struct{}{}
	}

	convIDs := make([]string, 0, len(seen))
	for convID := range seen {
		convIDs = append(convIDs, convID)
	}
	sort.Strings(convIDs)

	enqueued := 0
	for _, convID := range convIDs {
		payload, err := json.Marshal(PersistPayload{ConversationID: convID})
		if err != nil {
			return enqueued, fmt.Errorf("marshal persist payload for %s: %w", convID, err)
		}
		_, err = s.jobs.EnqueueRaw(ctx, KindPersistConversation, payload,
			job.WithDedupeKey("persist:"+convID),
		)
		if err != nil {
			return enqueued, fmt.Errorf("enqueue persistence for %s: %w", convID, err)
		}
		enqueued++
	}
	return enqueued, nil
}
