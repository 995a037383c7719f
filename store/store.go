// Package store defines the aggregate persistence interface. Each
// subsystem (job, failure, chat) defines its own store interface; the
// composite Store composes the queue-side ones. Backends: Redis and
// Memory for the queue side, Bun/Postgres for durable chat persistence.
package store

import (
	"context"

	"github.com/transseas/conveyor/chat"
	"github.com/transseas/conveyor/failure"
	"github.com/transseas/conveyor/job"
)

// Store is the aggregate queue-side persistence interface. A single
// backend implements all of them: job queueing, the terminal-failure
// archive, and the ranked message logs the reconciler consumes.
type Store interface {
	job.Store
	failure.Store
	chat.Log

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
