// Package chat implements the durable persistence pipeline for
// conversation messages.
//
// Messages are appended by the chat feature to an ephemeral ranked log
// in the cache, keyed by conversation and scored by creation timestamp.
// The Reconciler migrates a conversation's log into the durable store
// without losing or duplicating messages, even if the worker process is
// killed at any point mid-migration.
//
// Crash safety comes from two properties:
//
//  1. Before anything else, the live log is copied to a backup key. The
//     backup's existence marks an in-progress (or interrupted)
//     migration, so a re-run reads from the backup instead of trusting
//     the live log again.
//  2. Durable writes upsert by message id inside one transaction, so
//     re-applying them after a crash is a no-op.
//
// Together these give exactly-once effective persistence on top of
// at-least-once job execution.
package chat
