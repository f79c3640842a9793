package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
)

func TestApplyDelta(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	newScore, err := store.ApplyDelta(ctx, "alice", 5.0)
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if newScore != 5.0 {
		t.Errorf("ApplyDelta() = %v, want 5.0", newScore)
	}

	newScore, err = store.ApplyDelta(ctx, "alice", -2.0)
	if err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if newScore != 3.0 {
		t.Errorf("ApplyDelta() = %v, want 3.0", newScore)
	}

	score, err := store.Score(ctx, "alice")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != 3.0 {
		t.Errorf("Score() = %v, want 3.0", score)
	}
}

func TestScoreUnknownMember(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Score(context.Background(), "nobody")
	if !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("Score() error = %v, want ErrMemberNotFound", err)
	}
	_, err = store.Rank(context.Background(), "nobody")
	if !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("Rank() error = %v, want ErrMemberNotFound", err)
	}
}

func TestConcurrentDeltasSumExactly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	const workers = 50
	const deltasPerWorker = 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < deltasPerWorker; i++ {
				if _, err := store.ApplyDelta(ctx, "alice", 1.0); err != nil {
					t.Errorf("ApplyDelta() error = %v", err)
				}
			}
		}()
	}
	wg.Wait()

	score, err := store.Score(ctx, "alice")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if score != float64(workers*deltasPerWorker) {
		t.Errorf("Score() = %v, want %v", score, workers*deltasPerWorker)
	}
}

func TestRankOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	members := map[string]float64{
		"alice":   30,
		"bob":     10,
		"carol":   20,
		"dave":    20, // ties with carol, member asc wins
		"erin":    -5,
		"frank":   0,
		"grace":   100,
		"heather": 20,
	}
	for m, s := range members {
		if _, err := store.ApplyDelta(ctx, m, s); err != nil {
			t.Fatalf("ApplyDelta(%s) error = %v", m, err)
		}
	}

	wantOrder := []string{"grace", "alice", "carol", "dave", "heather", "bob", "frank", "erin"}
	for rank, member := range wantOrder {
		got, err := store.Rank(ctx, member)
		if err != nil {
			t.Fatalf("Rank(%s) error = %v", member, err)
		}
		if got != rank {
			t.Errorf("Rank(%s) = %d, want %d", member, got, rank)
		}
	}
}

func TestRankConsistentWithFullRange(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 200; i++ {
		member := fmt.Sprintf("player-%03d", i)
		if _, err := store.ApplyDelta(ctx, member, float64((i*37)%50)); err != nil {
			t.Fatalf("ApplyDelta() error = %v", err)
		}
	}

	size, _ := store.Size(ctx)
	entries, err := store.Range(ctx, 0, size-1)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(entries) != size {
		t.Fatalf("Range() returned %d entries, want %d", len(entries), size)
	}

	for i, e := range entries {
		if e.Rank != i {
			t.Errorf("entry %d has Rank %d", i, e.Rank)
		}
		rank, err := store.Rank(ctx, e.MemberID)
		if err != nil {
			t.Fatalf("Rank(%s) error = %v", e.MemberID, err)
		}
		if rank != i {
			t.Errorf("Rank(%s) = %d, want position %d", e.MemberID, rank, i)
		}
		if i > 0 {
			prev := entries[i-1]
			if prev.Score < e.Score {
				t.Errorf("entries out of order at %d: %v < %v", i, prev.Score, e.Score)
			}
			if prev.Score == e.Score && prev.MemberID >= e.MemberID {
				t.Errorf("tie order wrong at %d: %s >= %s", i, prev.MemberID, e.MemberID)
			}
		}
	}
}

func TestTopN(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i, m := range []string{"a", "b", "c"} {
		if _, err := store.ApplyDelta(ctx, m, float64(i)); err != nil {
			t.Fatalf("ApplyDelta() error = %v", err)
		}
	}

	tests := []struct {
		name    string
		n       int
		wantLen int
		want    []string
	}{
		{name: "n smaller than size", n: 2, wantLen: 2, want: []string{"c", "b"}},
		{name: "n equals size", n: 3, wantLen: 3, want: []string{"c", "b", "a"}},
		{name: "n larger than size", n: 10, wantLen: 3, want: []string{"c", "b", "a"}},
		{name: "zero n", n: 0, wantLen: 0},
		{name: "negative n", n: -1, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.TopN(ctx, tt.n)
			if err != nil {
				t.Fatalf("TopN() error = %v", err)
			}
			if len(entries) != tt.wantLen {
				t.Fatalf("TopN() returned %d entries, want %d", len(entries), tt.wantLen)
			}
			for i, want := range tt.want {
				if entries[i].MemberID != want {
					t.Errorf("TopN()[%d] = %s, want %s", i, entries[i].MemberID, want)
				}
				if entries[i].Rank != i {
					t.Errorf("TopN()[%d].Rank = %d, want %d", i, entries[i].Rank, i)
				}
			}
		})
	}
}

func TestRangeClamping(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 0; i < 5; i++ {
		if _, err := store.ApplyDelta(ctx, fmt.Sprintf("m%d", i), float64(i)); err != nil {
			t.Fatalf("ApplyDelta() error = %v", err)
		}
	}

	tests := []struct {
		name       string
		start, end int
		wantLen    int
	}{
		{name: "full range", start: 0, end: 4, wantLen: 5},
		{name: "negative start clamped", start: -3, end: 1, wantLen: 2},
		{name: "end beyond size clamped", start: 3, end: 100, wantLen: 2},
		{name: "start beyond size", start: 10, end: 20, wantLen: 0},
		{name: "inverted after clamp", start: 4, end: 2, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.Range(ctx, tt.start, tt.end)
			if err != nil {
				t.Fatalf("Range() error = %v", err)
			}
			if len(entries) != tt.wantLen {
				t.Errorf("Range(%d, %d) returned %d entries, want %d", tt.start, tt.end, len(entries), tt.wantLen)
			}
		})
	}
}

func TestRangeEmptyStore(t *testing.T) {
	entries, err := NewMemoryStore().Range(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Range() on empty store returned %d entries", len(entries))
	}
}

func TestNeighbors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 0; i < 10; i++ {
		// m0 has the highest score and rank 0
		if _, err := store.ApplyDelta(ctx, fmt.Sprintf("m%d", i), float64(100-i)); err != nil {
			t.Fatalf("ApplyDelta() error = %v", err)
		}
	}

	tests := []struct {
		name         string
		member       string
		above, below int
		wantRank     int
		wantFirst    string
		wantLen      int
	}{
		{name: "middle of board", member: "m5", above: 2, below: 2, wantRank: 5, wantFirst: "m3", wantLen: 5},
		{name: "top of board clamps above", member: "m0", above: 25, below: 3, wantRank: 0, wantFirst: "m0", wantLen: 4},
		{name: "bottom of board clamps below", member: "m9", above: 1, below: 24, wantRank: 9, wantFirst: "m8", wantLen: 2},
		{name: "wide window covers all", member: "m4", above: 25, below: 24, wantRank: 4, wantFirst: "m0", wantLen: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rank, entries, err := store.Neighbors(ctx, tt.member, tt.above, tt.below)
			if err != nil {
				t.Fatalf("Neighbors() error = %v", err)
			}
			if rank != tt.wantRank {
				t.Errorf("Neighbors() rank = %d, want %d", rank, tt.wantRank)
			}
			if len(entries) != tt.wantLen {
				t.Fatalf("Neighbors() returned %d entries, want %d", len(entries), tt.wantLen)
			}
			if entries[0].MemberID != tt.wantFirst {
				t.Errorf("Neighbors() first = %s, want %s", entries[0].MemberID, tt.wantFirst)
			}

			// The member itself must appear at its true rank in the window.
			found := false
			for _, e := range entries {
				if e.MemberID == tt.member {
					found = true
					if e.Rank != tt.wantRank {
						t.Errorf("member in window has rank %d, want %d", e.Rank, tt.wantRank)
					}
				}
				if e.Rank < 0 {
					t.Errorf("negative rank %d in window", e.Rank)
				}
			}
			if !found {
				t.Errorf("member %s missing from its own neighbor window", tt.member)
			}
		})
	}
}

func TestNeighborsUnknownMember(t *testing.T) {
	store := NewMemoryStore()
	_, _, err := store.Neighbors(context.Background(), "ghost", 2, 2)
	if !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("Neighbors() error = %v, want ErrMemberNotFound", err)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := store.ApplyDelta(ctx, "alice", 10); err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	if _, err := store.ApplyDelta(ctx, "bob", 20); err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}

	existed, err := store.Remove(ctx, "alice")
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !existed {
		t.Error("Remove() = false, want true for present member")
	}

	existed, err = store.Remove(ctx, "alice")
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if existed {
		t.Error("Remove() = true, want false for absent member")
	}

	// bob moves up to rank 0 after alice is gone
	rank, err := store.Rank(ctx, "bob")
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if rank != 0 {
		t.Errorf("Rank(bob) = %d, want 0", rank)
	}
	size, _ := store.Size(ctx)
	if size != 1 {
		t.Errorf("Size() = %d, want 1", size)
	}
}

func TestNegativeScores(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := store.ApplyDelta(ctx, "down", -12.5); err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}
	score, err := store.Score(ctx, "down")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if math.Abs(score+12.5) > 1e-9 {
		t.Errorf("Score() = %v, want -12.5", score)
	}
}

func TestConcurrentMixedOperations(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for w := 0; w < 20; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			member := fmt.Sprintf("m%d", w%5)
			for i := 0; i < 50; i++ {
				switch i % 4 {
				case 0:
					_, _ = store.ApplyDelta(ctx, member, 1.0)
				case 1:
					_, _ = store.TopN(ctx, 3)
				case 2:
					_, _ = store.Rank(ctx, member)
				case 3:
					_, _, _ = store.Neighbors(ctx, member, 2, 2)
				}
			}
		}(w)
	}
	wg.Wait()

	// Every member that received deltas must be rankable afterwards.
	size, _ := store.Size(ctx)
	entries, err := store.Range(ctx, 0, size-1)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(entries) != size {
		t.Errorf("Range() returned %d entries, want %d", len(entries), size)
	}
}
