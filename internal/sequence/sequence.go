package sequence

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
)

// Seeder reports the current highest order number under an entry.
type Seeder interface {
	MaxOrderNumber(ctx context.Context, catalogueID int, entryID string) (int, error)
}

// Sequencer hands out per-entry order numbers. Numbers are never reused.
type Sequencer interface {
	Next(ctx context.Context, catalogueID int, entryID string) (int, error)
}

func counterKey(catalogueID int, entryID string) string {
	return fmt.Sprintf("origtext:order:%d:%s", catalogueID, entryID)
}

// RedisSequencer keeps one counter per entry. The counter is seeded once from
// the index maximum with SETNX, so concurrent processes agree on the sequence.
type RedisSequencer struct {
	client *redis.Client
	seed   Seeder
}

func NewRedisSequencer(client *redis.Client, seed Seeder) *RedisSequencer {
	return &RedisSequencer{client: client, seed: seed}
}

func (s *RedisSequencer) Next(ctx context.Context, catalogueID int, entryID string) (int, error) {
	key := counterKey(catalogueID, entryID)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("check order counter: %w", err)
	}
	if exists == 0 {
		max, err := s.seed.MaxOrderNumber(ctx, catalogueID, entryID)
		if err != nil {
			return 0, err
		}
		if err := s.client.SetNX(ctx, key, max, 0).Err(); err != nil {
			return 0, fmt.Errorf("seed order counter: %w", err)
		}
	}
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment order counter: %w", err)
	}
	return int(n), nil
}

// LocalSequencer is the single-process variant.
type LocalSequencer struct {
	mu       sync.Mutex
	seed     Seeder
	counters map[string]int
}

func NewLocalSequencer(seed Seeder) *LocalSequencer {
	return &LocalSequencer{seed: seed, counters: make(map[string]int)}
}

func (s *LocalSequencer) Next(ctx context.Context, catalogueID int, entryID string) (int, error) {
	key := counterKey(catalogueID, entryID)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.counters[key]
	if !ok {
		max, err := s.seed.MaxOrderNumber(ctx, catalogueID, entryID)
		if err != nil {
			return 0, err
		}
		cur = max
	}
	cur++
	s.counters[key] = cur
	return cur, nil
}
