package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/transseas/conveyor/chat"
)

// The ranked-log methods operate on keys owned by the chat producers
// ("chat:messages:..."), not on conveyor-prefixed keys, so the
// reconciler sees exactly the Sorted Sets the producers write.

// Exists reports whether the given key holds any entries.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("conveyor/redis: exists %s: %w", key, err)
	}
	return n > 0, nil
}

// RangeDescWithScores returns all entries under key ordered by score
// descending, with their scores.
func (s *Store) RangeDescWithScores(ctx context.Context, key string) ([]chat.Entry, error) {
	zs, err := s.client.ZRevRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: range %s: %w", key, err)
	}

	entries := make([]chat.Entry, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, chat.Entry{Member: member, Score: z.Score})
	}
	return entries, nil
}

// AddWithScores writes the given entries under key, preserving their
// scores.
func (s *Store) AddWithScores(ctx context.Context, key string, entries []chat.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	zs := make([]goredis.Z, len(entries))
	for i, e := range entries {
		zs[i] = goredis.Z{Score: e.Score, Member: e.Member}
	}
	if err := s.client.ZAdd(ctx, key, zs...).Err(); err != nil {
		return fmt.Errorf("conveyor/redis: add %s: %w", key, err)
	}
	return nil
}

// ScanKeys returns all keys matching the glob-style pattern, using
// cursor-based iteration so large keyspaces are not blocked on.
func (s *Store) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("conveyor/redis: scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// Delete removes the given keys. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("conveyor/redis: delete keys: %w", err)
	}
	return nil
}
