package api

import (
	"log/slog"
	"net/http"
)

// RouterConfig holds the handler dependencies for the API routes.
// Live and MetricsHandler are optional; Authenticate wraps the routes
// that require a bearer token and may be nil in tests.
type RouterConfig struct {
	Evaluate    *EvaluateHandlers
	Leaderboard *LeaderboardHandlers
	Cache       *CacheHandlers
	Health      *HealthHandlers

	Live           *LiveHandlers
	MetricsHandler http.Handler
	Authenticate   func(http.Handler) http.Handler
}

// NewRouter builds the service mux. Evaluation, score submission, and
// cache administration require authentication; leaderboard reads, the
// live stream, and probes are public.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	protect := cfg.Authenticate
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}

	mux := http.NewServeMux()

	mux.Handle("/evaluate_answer", protect(http.HandlerFunc(cfg.Evaluate.EvaluateAnswer)))
	mux.Handle("/submit_score", protect(http.HandlerFunc(cfg.Leaderboard.SubmitScore)))

	mux.HandleFunc("/leaderboard/top/", cfg.Leaderboard.TopPlayers)
	mux.HandleFunc("/leaderboard/user/", cfg.Leaderboard.UserRank)
	if cfg.Live != nil {
		mux.HandleFunc("/leaderboard/live", cfg.Live.Subscribe)
	}

	mux.Handle("/cache/stats", protect(http.HandlerFunc(cfg.Cache.Stats)))
	mux.Handle("/cache/clear", protect(http.HandlerFunc(cfg.Cache.Clear)))
	mux.Handle("/cache/", protect(http.HandlerFunc(cfg.Cache.Invalidate)))

	mux.HandleFunc("/health", cfg.Health.Health)
	mux.HandleFunc("/ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		mux.Handle("/metrics", cfg.MetricsHandler)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only the exact root path; everything else is 404.
		if r.URL.Path != "/" {
			WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"tonequest-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	return mux
}
