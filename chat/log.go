package chat

import "context"

// Entry is one member of a ranked log: the serialized message and its
// rank. Ranks are creation timestamps assigned by the producer; the
// reconciler never re-ranks, only relocates entries.
type Entry struct {
	Member string
	Score  float64
}

// Log is the ranked-log contract the reconciler consumes from the
// cache. Implementations back it with a sorted-set-capable store.
type Log interface {
	// Exists reports whether the given key holds any entries.
	Exists(ctx context.Context, key string) (bool, error)

	// RangeDescWithScores returns all entries under key ordered by rank
	// descending (newest first), with their scores.
	RangeDescWithScores(ctx context.Context, key string) ([]Entry, error)

	// AddWithScores writes the given entries under key, preserving
	// their scores.
	AddWithScores(ctx context.Context, key string, entries []Entry) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// Store is the durable side of the pipeline.
type Store interface {
	// UpsertMessages writes all messages in a single transaction,
	// keyed by message id: create-if-absent, no-op-if-present. Either
	// every row is applied or none are.
	UpsertMessages(ctx context.Context, msgs []*Message) error
}
