package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/transseas/conveyor"
	"github.com/transseas/conveyor/job"
)

// Queue is the queue name persistence jobs run on.
const Queue = "persistence"

// KindPersistConversation is the job kind handled by the Reconciler.
const KindPersistConversation = "persist-conversation"

// PersistPayload is the payload of a persist-conversation job.
type PersistPayload struct {
	ConversationID string `json:"conversationId"`
}

// Reconciler migrates one conversation's ranked message log from the
// cache into the durable store. One execution handles one conversation
// id and is safe to re-run from scratch after a crash at any point.
type Reconciler struct {
	log    Log
	store  Store
	logger *slog.Logger
}

// NewReconciler creates a Reconciler over the given ranked log and
// durable store.
func NewReconciler(log Log, store Store, logger *slog.Logger) *Reconciler {
	return &Reconciler{log: log, store: store, logger: logger}
}

// Definition returns the typed job definition binding the reconciler to
// the persistence queue.
func (r *Reconciler) Definition() *job.Definition[PersistPayload] {
	return job.NewDefinition(KindPersistConversation,
		func(ctx context.Context, p PersistPayload) error {
			if p.ConversationID == "" {
				return conveyor.Terminal(fmt.Errorf("persist-conversation: missing conversationId"))
			}
			result, err := r.Reconcile(ctx, p.ConversationID)
			if err != nil {
				return err
			}
			r.logger.Info("conversation persistence done",
				slog.String("conversation_id", p.ConversationID),
				slog.String("result", result),
			)
			return nil
		},
		job.WithQueue(Queue),
	)
}

// Register registers the reconciler's job definition with the registry.
func (r *Reconciler) Register(reg *job.Registry) {
	job.RegisterDefinition(reg, r.Definition())
}

// Reconcile runs the migration for a single conversation and returns a
// human-readable result.
//
// The flow is: check for a backup; resume from it if present, otherwise
// snapshot the live log into the backup; parse every entry; upsert all
// parsed messages in one transaction; delete both cache keys. The
// backup is the durability checkpoint: once it exists, any crash later
// in the flow is recovered by re-running from the backup, and the
// transactional upserts make that re-run a no-op for rows already
// written.
func (r *Reconciler) Reconcile(ctx context.Context, conversationID string) (string, error) {
	liveKey := LiveKey(conversationID)
	backupKey := BackupKey(conversationID)

	backupExists, err := r.log.Exists(ctx, backupKey)
	if err != nil {
		return "", fmt.Errorf("check backup %s: %w", backupKey, err)
	}

	var entries []Entry
	if backupExists {
		// A prior run was interrupted after creating the backup. The
		// live log can no longer be trusted for a second snapshot, so
		// read from the backup only.
		entries, err = r.log.RangeDescWithScores(ctx, backupKey)
		if err != nil {
			return "", fmt.Errorf("read backup %s: %w", backupKey, err)
		}
		r.logger.Info("resuming interrupted persistence from backup",
			slog.String("conversation_id", conversationID),
			slog.Int("entries", len(entries)),
		)
	} else {
		entries, err = r.log.RangeDescWithScores(ctx, liveKey)
		if err != nil {
			return "", fmt.Errorf("read live log %s: %w", liveKey, err)
		}
		if len(entries) > 0 {
			// The backup write is the durability checkpoint. Nothing
			// destructive happens before it exists.
			if err := r.log.AddWithScores(ctx, backupKey, entries); err != nil {
				return "", fmt.Errorf("write backup %s: %w", backupKey, err)
			}
		}
	}

	if len(entries) == 0 {
		return fmt.Sprintf("no messages to persist for %s", conversationID), nil
	}

	msgs := make([]*Message, 0, len(entries))
	for _, e := range entries {
		var m Message
		if err := json.Unmarshal([]byte(e.Member), &m); err != nil {
			// A malformed entry fails the whole job rather than being
			// dropped. Re-running from the backup is safe, losing a
			// message is not.
			return "", conveyor.Terminal(fmt.Errorf("parse message in %s: %w", conversationID, err))
		}
		msgs = append(msgs, &m)
	}

	if err := r.store.UpsertMessages(ctx, msgs); err != nil {
		return "", fmt.Errorf("persist %d messages for %s: %w", len(msgs), conversationID, err)
	}

	// Only after the transaction commits. If this delete is
	// interrupted, the next run finds the backup, re-applies the same
	// upserts harmlessly, and completes the cleanup.
	if err := r.log.Delete(ctx, liveKey, backupKey); err != nil {
		return "", fmt.Errorf("cleanup keys for %s: %w", conversationID, err)
	}

	return fmt.Sprintf("persisted %d messages for %s", len(msgs), conversationID), nil
}
