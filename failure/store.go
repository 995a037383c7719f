package failure

import (
	"context"
	"time"

	"github.com/transseas/conveyor/id"
)

// ListOpts controls pagination and filtering for archive list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// Queue filters by queue name. Empty means all queues.
	Queue string
}

// Store defines the persistence contract for the terminal-failure archive.
type Store interface {
	// PushFailure archives a terminally failed job.
	PushFailure(ctx context.Context, entry *Entry) error

	// ListFailures returns archive entries matching the given options.
	ListFailures(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// GetFailure retrieves an archive entry by ID.
	GetFailure(ctx context.Context, entryID id.FailureID) (*Entry, error)

	// MarkReplayed records that an entry was replayed. The actual
	// re-enqueue is handled at the service layer.
	MarkReplayed(ctx context.Context, entryID id.FailureID) error

	// PurgeFailures removes entries with FailedAt before the given time.
	// Returns the number of entries removed.
	PurgeFailures(ctx context.Context, before time.Time) (int64, error)

	// CountFailures returns the total number of archived entries.
	CountFailures(ctx context.Context) (int64, error)
}
