package leaderboard

import (
	"context"
	"sync"
)

// MemoryStore is the in-process Store implementation. Scores live in a
// member map paired with an order-statistics skip list, giving O(log n)
// delta application and rank/range queries. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	scores  map[string]float64
	sl      *skiplist
	metrics *Metrics
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithMetrics attaches Prometheus metrics to the store.
func WithMetrics(m *Metrics) MemoryStoreOption {
	return func(s *MemoryStore) { s.metrics = m }
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		scores: make(map[string]float64),
		sl:     newSkiplist(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyDelta adds delta to the member's score, creating the entry on
// first use, and returns the new score.
func (s *MemoryStore) ApplyDelta(_ context.Context, memberID string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.scores[memberID]
	if ok {
		s.sl.delete(memberID, old)
	}
	newScore := old + delta
	s.scores[memberID] = newScore
	s.sl.insert(memberID, newScore)

	if s.metrics != nil {
		s.metrics.IncDeltas()
		s.metrics.SetMembers(float64(len(s.scores)))
	}
	return newScore, nil
}

// Score returns the member's current score.
func (s *MemoryStore) Score(_ context.Context, memberID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.scores[memberID]
	if !ok {
		return 0, ErrMemberNotFound
	}
	return score, nil
}

// Rank returns the member's 0-indexed rank in descending score order.
func (s *MemoryStore) Rank(_ context.Context, memberID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.scores[memberID]
	if !ok {
		return 0, ErrMemberNotFound
	}
	rank, ok := s.sl.rank(memberID, score)
	if !ok {
		return 0, ErrMemberNotFound
	}
	return rank, nil
}

// TopN returns up to n entries starting from rank 0.
func (s *MemoryStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	return s.Range(ctx, 0, n-1)
}

// Range returns entries between start and end rank inclusive, clamped to
// the store size.
func (s *MemoryStore) Range(_ context.Context, start, end int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.sl.length == 0 {
		return []Entry{}, nil
	}
	if start < 0 {
		start = 0
	}
	if end > s.sl.length-1 {
		end = s.sl.length - 1
	}
	if start > end {
		return []Entry{}, nil
	}

	entries := make([]Entry, 0, end-start+1)
	node := s.sl.nodeAtRank(start)
	for r := start; r <= end && node != nil; r++ {
		entries = append(entries, Entry{Rank: r, MemberID: node.member, Score: node.score})
		node = node.levels[0].forward
	}
	return entries, nil
}

// Neighbors returns the member's rank and the surrounding window of
// entries, from max(rank-above, 0) through rank+below inclusive.
func (s *MemoryStore) Neighbors(ctx context.Context, memberID string, above, below int) (int, []Entry, error) {
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

// Remove deletes the member's entry. Reports whether it existed.
func (s *MemoryStore) Remove(_ context.Context, memberID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	score, ok := s.scores[memberID]
	if !ok {
		return false, nil
	}
	delete(s.scores, memberID)
	s.sl.delete(memberID, score)

	if s.metrics != nil {
		s.metrics.SetMembers(float64(len(s.scores)))
	}
	return true, nil
}

// Size returns the number of members in the store.
func (s *MemoryStore) Size(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scores), nil
}
