package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tonequest/api/internal/leaderboard"
)

func seedStore(t *testing.T, scores map[string]float64) *leaderboard.MemoryStore {
	t.Helper()
	store := leaderboard.NewMemoryStore()
	for member, score := range scores {
		if _, err := store.ApplyDelta(context.Background(), member, score); err != nil {
			t.Fatalf("seed %s: %v", member, err)
		}
	}
	return store
}

func TestSubmitScore(t *testing.T) {
	store := seedStore(t, nil)
	h := NewLeaderboardHandlers(store, 25, 24)

	body := `{"user_id":"alice","delta":5.0}`
	req := httptest.NewRequest(http.MethodPost, "/submit_score", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.SubmitScore(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp SubmitScoreResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.UserID != "alice" || resp.NewScore != 5.0 {
		t.Errorf("response = %+v, want alice/5.0", resp)
	}

	// A second, negative delta accumulates.
	body = `{"user_id":"alice","delta":-2.0}`
	req = httptest.NewRequest(http.MethodPost, "/submit_score", strings.NewReader(body))
	rec = httptest.NewRecorder()
	h.SubmitScore(rec, req)

	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.NewScore != 3.0 {
		t.Errorf("new_score = %v, want 3.0", resp.NewScore)
	}
}

func TestSubmitScoreNotifiesListener(t *testing.T) {
	store := seedStore(t, nil)
	notified := false
	h := NewLeaderboardHandlers(store, 25, 24, WithChangeListener(func() { notified = true }))

	req := httptest.NewRequest(http.MethodPost, "/submit_score", strings.NewReader(`{"user_id":"bob","delta":1}`))
	h.SubmitScore(httptest.NewRecorder(), req)

	if !notified {
		t.Error("change listener was not invoked")
	}
}

func TestSubmitScoreValidation(t *testing.T) {
	h := NewLeaderboardHandlers(seedStore(t, nil), 25, 24)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing user_id", body: `{"delta":1}`},
		{name: "blank user_id", body: `{"user_id":"  ","delta":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/submit_score", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.SubmitScore(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestTopPlayers(t *testing.T) {
	store := seedStore(t, map[string]float64{
		"alice":   30,
		"bob":     20,
		"carol":   10,
		"derek":   25,
		"eleanor": 5,
	})
	h := NewLeaderboardHandlers(store, 25, 24)

	req := httptest.NewRequest(http.MethodGet, "/leaderboard/top/3", nil)
	rec := httptest.NewRecorder()
	h.TopPlayers(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var entries []PlayerEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	want := []PlayerEntry{
		{Rank: 1, UserID: "alice", Score: 30},
		{Rank: 2, UserID: "derek", Score: 25},
		{Rank: 3, UserID: "bob", Score: 20},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entries[%d] = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestTopPlayersValidation(t *testing.T) {
	h := NewLeaderboardHandlers(seedStore(t, nil), 25, 24)

	for _, path := range []string{"/leaderboard/top/0", "/leaderboard/top/-5", "/leaderboard/top/abc", "/leaderboard/top/10000"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			h.TopPlayers(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestUserRank(t *testing.T) {
	store := seedStore(t, map[string]float64{
		"alice": 30,
		"bob":   20,
		"carol": 10,
	})
	// Small window so the test controls the shape precisely.
	h := NewLeaderboardHandlers(store, 1, 1)

	req := httptest.NewRequest(http.MethodGet, "/leaderboard/user/bob", nil)
	rec := httptest.NewRecorder()
	h.UserRank(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp UserRankResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.UserID != "bob" || resp.Rank != 2 || resp.Score != 20 {
		t.Errorf("response = %+v, want bob/rank 2/score 20", resp)
	}
	if len(resp.NearbyPlayers) != 3 {
		t.Fatalf("nearby_players has %d entries, want 3", len(resp.NearbyPlayers))
	}
	// Absolute 1-indexed ranks for the whole window.
	if resp.NearbyPlayers[0].Rank != 1 || resp.NearbyPlayers[0].UserID != "alice" {
		t.Errorf("nearby[0] = %+v, want alice at rank 1", resp.NearbyPlayers[0])
	}
	if resp.NearbyPlayers[2].Rank != 3 || resp.NearbyPlayers[2].UserID != "carol" {
		t.Errorf("nearby[2] = %+v, want carol at rank 3", resp.NearbyPlayers[2])
	}
}

func TestUserRankTopOfBoard(t *testing.T) {
	store := seedStore(t, map[string]float64{"alice": 30, "bob": 20})
	h := NewLeaderboardHandlers(store, 25, 24)

	req := httptest.NewRequest(http.MethodGet, "/leaderboard/user/alice", nil)
	rec := httptest.NewRecorder()
	h.UserRank(rec, req)

	var resp UserRankResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	// The window clamps at the top; the leader's own rank stays 1.
	if resp.Rank != 1 {
		t.Errorf("rank = %d, want 1", resp.Rank)
	}
	if resp.NearbyPlayers[0].Rank != 1 {
		t.Errorf("first nearby rank = %d, want 1", resp.NearbyPlayers[0].Rank)
	}
}

func TestUserRankNotFound(t *testing.T) {
	h := NewLeaderboardHandlers(seedStore(t, nil), 25, 24)

	req := httptest.NewRequest(http.MethodGet, "/leaderboard/user/ghost", nil)
	rec := httptest.NewRecorder()
	h.UserRank(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error body: %v", err)
	}
	if resp.Error.Code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", resp.Error.Code, ErrCodeNotFound)
	}
}

func TestScoresRoundedToTwoDecimals(t *testing.T) {
	store := seedStore(t, map[string]float64{"alice": 0.98765})
	h := NewLeaderboardHandlers(store, 25, 24)

	req := httptest.NewRequest(http.MethodGet, "/leaderboard/top/1", nil)
	rec := httptest.NewRecorder()
	h.TopPlayers(rec, req)

	var entries []PlayerEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if entries[0].Score != 0.99 {
		t.Errorf("score = %v, want 0.99", entries[0].Score)
	}
}
