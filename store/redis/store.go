// Package redis implements store.Store using Redis. Jobs live as Hashes
// with per-queue Sorted Sets ordered by run time, the failure archive
// uses Hashes behind an id Set, and conversation message logs are plain
// Sorted Sets shared with the chat producers.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/transseas/conveyor/chat"
	"github.com/transseas/conveyor/failure"
	"github.com/transseas/conveyor/job"
)

// Compile-time interface checks.
var (
	_ job.Store       = (*Store)(nil)
	_ failure.Store   = (*Store)(nil)
	_ chat.Log        = (*Store)(nil)
	_ chat.KeyScanner = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements the job, failure, and chat-log store contracts
// backed by Redis.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis
// client lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op. The caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }
