package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/tonequest/api/internal/leaderboard"
	"github.com/tonequest/api/internal/validate"
)

// maxTopN bounds GET /leaderboard/top/{n} to keep responses reasonable.
const maxTopN = 1000

// LeaderboardHandlers holds dependencies for leaderboard endpoints.
type LeaderboardHandlers struct {
	store    leaderboard.Store
	above    int
	below    int
	onChange func()
}

// LeaderboardHandlersOption configures LeaderboardHandlers.
type LeaderboardHandlersOption func(*LeaderboardHandlers)

// WithChangeListener registers a callback invoked after every applied
// delta, used to wake the live snapshot stream.
func WithChangeListener(fn func()) LeaderboardHandlersOption {
	return func(h *LeaderboardHandlers) { h.onChange = fn }
}

// NewLeaderboardHandlers creates a new LeaderboardHandlers instance.
// above and below size the nearby-players window on the user endpoint.
func NewLeaderboardHandlers(store leaderboard.Store, above, below int, opts ...LeaderboardHandlersOption) *LeaderboardHandlers {
	h := &LeaderboardHandlers{store: store, above: above, below: below}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SubmitScoreRequest is the request body for POST /submit_score.
type SubmitScoreRequest struct {
	UserID string  `json:"user_id"`
	Delta  float64 `json:"delta"`
}

// SubmitScoreResponse is the response body for POST /submit_score.
type SubmitScoreResponse struct {
	UserID   string  `json:"user_id"`
	NewScore float64 `json:"new_score"`
}

// PlayerEntry is one row of a leaderboard response. Ranks are 1-indexed
// for display; scores are rounded to 2 decimals.
type PlayerEntry struct {
	Rank   int     `json:"rank"`
	UserID string  `json:"user_id"`
	Score  float64 `json:"score"`
}

// UserRankResponse is the response body for GET /leaderboard/user/{user_id}.
type UserRankResponse struct {
	UserID        string        `json:"user_id"`
	Rank          int           `json:"rank"`
	Score         float64       `json:"score"`
	NearbyPlayers []PlayerEntry `json:"nearby_players"`
}

// SubmitScore handles POST /submit_score.
// Applies a score delta to the user, creating the member on first use,
// and returns the resulting score.
func (h *LeaderboardHandlers) SubmitScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req SubmitScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	userID, err := validate.UserID(req.UserID)
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	if err := validate.ScoreDelta(req.Delta); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	newScore, err := h.store.ApplyDelta(ctx, userID, req.Delta)
	if err != nil {
		slog.ErrorContext(ctx, "failed to apply score delta", "error", err, "user_id", userID)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "Leaderboard store unavailable")
		return
	}
	if h.onChange != nil {
		h.onChange()
	}

	writeJSON(w, ctx, http.StatusOK, SubmitScoreResponse{
		UserID:   userID,
		NewScore: round(newScore, 2),
	})
}

// TopPlayers handles GET /leaderboard/top/{n}.
// Returns the n highest-ranked players, best first.
func (h *LeaderboardHandlers) TopPlayers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/leaderboard/top/")
	n, err := strconv.Atoi(raw)
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "n must be a positive integer")
		return
	}
	if err := validate.TopN(n, maxTopN); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	entries, err := h.store.TopN(ctx, n)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch top players", "error", err)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "Leaderboard store unavailable")
		return
	}

	writeJSON(w, ctx, http.StatusOK, toPlayerEntries(entries))
}

// UserRank handles GET /leaderboard/user/{user_id}.
// Returns the user's rank and score plus the surrounding window of
// nearby players. All ranks are absolute and 1-indexed.
func (h *LeaderboardHandlers) UserRank(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/leaderboard/user/")
	if userID == "" || strings.Contains(userID, "/") {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "User ID is required")
		return
	}

	score, err := h.store.Score(ctx, userID)
	if err != nil {
		if errors.Is(err, leaderboard.ErrMemberNotFound) {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "User not on leaderboard")
			return
		}
		slog.ErrorContext(ctx, "failed to fetch user score", "error", err, "user_id", userID)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "Leaderboard store unavailable")
		return
	}

	rank, err := h.store.Rank(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch user rank", "error", err, "user_id", userID)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "Leaderboard store unavailable")
		return
	}

	_, nearby, err := h.store.Neighbors(ctx, userID, h.above, h.below)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch nearby players", "error", err, "user_id", userID)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "Leaderboard store unavailable")
		return
	}

	writeJSON(w, ctx, http.StatusOK, UserRankResponse{
		UserID:        userID,
		Rank:          rank + 1,
		Score:         round(score, 2),
		NearbyPlayers: toPlayerEntries(nearby),
	})
}

// toPlayerEntries converts store entries to display rows.
func toPlayerEntries(entries []leaderboard.Entry) []PlayerEntry {
	out := make([]PlayerEntry, len(entries))
	for i, e := range entries {
		out[i] = PlayerEntry{
			Rank:   e.Rank + 1,
			UserID: e.MemberID,
			Score:  round(e.Score, 2),
		}
	}
	return out
}

// round rounds value to the given number of decimal places.
func round(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
