// Package leaderboard provides the ranked score store backing the
// competitive leaderboard: atomic delta updates, rank lookups, top-N and
// neighbor-window queries over members ordered by score.
package leaderboard

import (
	"context"
	"errors"
)

// ErrMemberNotFound is returned when a member has no entry in the store.
var ErrMemberNotFound = errors.New("member not found in leaderboard")

// Entry is a single leaderboard row. Rank is 0-indexed, descending by
// score (rank 0 is the highest score). Ties are ordered by member ID
// ascending so results are reproducible across calls.
type Entry struct {
	Rank     int
	MemberID string
	Score    float64
}

// Store is the ranked score store contract. Implementations must be safe
// for concurrent use; delta application for a single member is serialized
// (no lost updates).
type Store interface {
	// ApplyDelta adds delta to the member's current score (0 if absent),
	// creating the entry if necessary, and returns the new score.
	ApplyDelta(ctx context.Context, memberID string, delta float64) (float64, error)

	// Score returns the member's current score.
	// Returns ErrMemberNotFound if the member has no entry.
	Score(ctx context.Context, memberID string) (float64, error)

	// Rank returns the member's 0-indexed rank in descending score order.
	// Returns ErrMemberNotFound if the member has no entry.
	Rank(ctx context.Context, memberID string) (int, error)

	// TopN returns up to n entries starting from rank 0.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Range returns entries between start and end rank inclusive, clamped
	// to the store size. An empty slice is returned when the clamped range
	// is empty.
	Range(ctx context.Context, start, end int) ([]Entry, error)

	// Neighbors returns the member's 0-indexed rank and the window of
	// entries from max(rank-above, 0) through rank+below inclusive.
	// Returns ErrMemberNotFound if the member has no entry.
	Neighbors(ctx context.Context, memberID string, above, below int) (int, []Entry, error)

	// Remove deletes the member's entry. Reports whether it existed.
	Remove(ctx context.Context, memberID string) (bool, error)

	// Size returns the number of members in the store.
	Size(ctx context.Context) (int, error)
}
