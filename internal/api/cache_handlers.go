package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tonequest/api/internal/cache"
	"github.com/tonequest/api/internal/scoring"
)

// CacheHandlers exposes administrative endpoints for the reference-record
// cache: inspection, full clear, and per-question invalidation.
type CacheHandlers struct {
	cache *cache.Cache[int, *scoring.Record]
}

// NewCacheHandlers creates a new CacheHandlers instance.
func NewCacheHandlers(c *cache.Cache[int, *scoring.Record]) *CacheHandlers {
	return &CacheHandlers{cache: c}
}

// CacheStatsResponse is the response body for GET /cache/stats.
type CacheStatsResponse struct {
	Count      int     `json:"count"`
	Capacity   int     `json:"capacity"`
	TTLSeconds float64 `json:"ttl_seconds"`
	Keys       []int   `json:"keys"`
}

// Stats handles GET /cache/stats.
func (h *CacheHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	stats := h.cache.Stats()
	keys := stats.Keys
	if keys == nil {
		keys = []int{}
	}
	writeJSON(w, ctx, http.StatusOK, CacheStatsResponse{
		Count:      stats.Count,
		Capacity:   stats.Capacity,
		TTLSeconds: stats.TTL.Seconds(),
		Keys:       keys,
	})
}

// Clear handles POST /cache/clear.
func (h *CacheHandlers) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	h.cache.Clear()
	writeJSON(w, ctx, http.StatusOK, map[string]bool{"cleared": true})
}

// Invalidate handles DELETE /cache/{question_id}.
// Returns 404 when the question has no cached record.
func (h *CacheHandlers) Invalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodDelete {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/cache/")
	questionID, err := strconv.Atoi(raw)
	if err != nil || questionID <= 0 {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "question_id must be a positive integer")
		return
	}

	if !h.cache.Invalidate(questionID) {
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "No cached record for question")
		return
	}
	writeJSON(w, ctx, http.StatusOK, map[string]any{
		"question_id": questionID,
		"invalidated": true,
	})
}
