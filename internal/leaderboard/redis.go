package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by a Redis sorted set. Delta application
// maps to ZINCRBY and rank queries to ZREVRANK/ZREVRANGE, so the same
// semantics hold across process restarts and multiple API instances.
// Transient failures are retried by the client (MaxRetries on the
// redis.Options passed to the caller-constructed client).
type RedisStore struct {
	client  *redis.Client
	key     string
	metrics *Metrics
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithRedisMetrics attaches Prometheus metrics to the store.
func WithRedisMetrics(m *Metrics) RedisStoreOption {
	return func(s *RedisStore) { s.metrics = m }
}

// NewRedisStore creates a Store over the sorted set stored at key.
func NewRedisStore(client *redis.Client, key string, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{client: client, key: key}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyDelta increments the member's score via ZINCRBY and returns the
// new score.
func (s *RedisStore) ApplyDelta(ctx context.Context, memberID string, delta float64) (float64, error) {
	newScore, err := s.client.ZIncrBy(ctx, s.key, delta, memberID).Result()
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncDeltaErrors()
		}
		return 0, fmt.Errorf("leaderboard: zincrby %q: %w", memberID, err)
	}
	if s.metrics != nil {
		s.metrics.IncDeltas()
	}
	return newScore, nil
}

// Score returns the member's current score.
func (s *RedisStore) Score(ctx context.Context, memberID string) (float64, error) {
	score, err := s.client.ZScore(ctx, s.key, memberID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrMemberNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("leaderboard: zscore %q: %w", memberID, err)
	}
	return score, nil
}

// Rank returns the member's 0-indexed rank in descending score order.
func (s *RedisStore) Rank(ctx context.Context, memberID string) (int, error) {
	rank, err := s.client.ZRevRank(ctx, s.key, memberID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrMemberNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("leaderboard: zrevrank %q: %w", memberID, err)
	}
	return int(rank), nil
}

// TopN returns up to n entries starting from rank 0.
func (s *RedisStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	return s.Range(ctx, 0, n-1)
}

// Range returns entries between start and end rank inclusive. Redis
// clamps the bounds to the set size.
func (s *RedisStore) Range(ctx context.Context, start, end int) ([]Entry, error) {
	if start < 0 {
		start = 0
	}
	if end < start {
		return []Entry{}, nil
	}
	members, err := s.client.ZRevRangeWithScores(ctx, s.key, int64(start), int64(end)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard: zrevrange [%d,%d]: %w", start, end, err)
	}
	entries := make([]Entry, 0, len(members))
	for i, m := range members {
		member, ok := m.Member.(string)
		if !ok {
			return nil, fmt.Errorf("leaderboard: unexpected member type %T", m.Member)
		}
		entries = append(entries, Entry{Rank: start + i, MemberID: member, Score: m.Score})
	}
	return entries, nil
}

// Neighbors returns the member's rank and the surrounding window of
// entries, from max(rank-above, 0) through rank+below inclusive.
func (s *RedisStore) Neighbors(ctx context.Context, memberID string, above, below int) (int, []Entry, error) {
	rank, err := s.Rank(ctx, memberID)
	if err != nil {
		return 0, nil, err
	}
	start := rank - above
	if start < 0 {
		start = 0
	}
	entries, err := s.Range(ctx, start, rank+below)
	if err != nil {
		return 0, nil, err
	}
	return rank, entries, nil
}

// Remove deletes the member's entry via ZREM. Reports whether it existed.
func (s *RedisStore) Remove(ctx context.Context, memberID string) (bool, error) {
	removed, err := s.client.ZRem(ctx, s.key, memberID).Result()
	if err != nil {
		return false, fmt.Errorf("leaderboard: zrem %q: %w", memberID, err)
	}
	return removed > 0, nil
}

// Size returns the number of members in the sorted set.
func (s *RedisStore) Size(ctx context.Context) (int, error) {
	size, err := s.client.ZCard(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("leaderboard: zcard: %w", err)
	}
	return int(size), nil
}
