package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/evaluate_answer", "/evaluate_answer"},
		{"/submit_score", "/submit_score"},
		{"/leaderboard/top/10", "/leaderboard/top/{n}"},
		{"/leaderboard/user/abc-123", "/leaderboard/user/{user_id}"},
		{"/leaderboard/live", "/leaderboard/live"},
		{"/cache/stats", "/cache/stats"},
		{"/cache/clear", "/cache/clear"},
		{"/cache/42", "/cache/{question_id}"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/unknown/route", "/unknown/route"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestHTTPMetricsRecordsRequests(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/leaderboard/top/25", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/leaderboard/top/{n}", "200"))
	if got != 1 {
		t.Errorf("http_requests_total = %v, want 1", got)
	}
}

func TestHTTPMetricsSkipsHealthEndpoints(t *testing.T) {
	metrics := NewMetrics()
	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/ready"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.CollectAndCount(metrics.httpRequestsTotal); got != 0 {
		t.Errorf("collected %d series for health endpoints, want 0", got)
	}
}

func TestHTTPMetricsCapturesRequestSize(t *testing.T) {
	metrics := NewMetrics()
	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	body := strings.NewReader(`{"question_id":1,"answer_text":"Paris"}`)
	req := httptest.NewRequest(http.MethodPost, "/evaluate_answer", body)
	req.Header.Set("Content-Length", "39")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.CollectAndCount(metrics.httpRequestSize); got != 1 {
		t.Errorf("request size series = %d, want 1", got)
	}
}
