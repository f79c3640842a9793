// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// subjectIDKey is the context key for the authenticated subject.
type subjectIDKey struct{}

// SetSubjectID stores the authenticated subject ID in the context.
// Called by the auth middleware after validating the bearer token.
func SetSubjectID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, subjectIDKey{}, id)
}

// GetSubjectID retrieves the subject ID from context. Returns empty string if not present.
func GetSubjectID(ctx context.Context) string {
	if id, ok := ctx.Value(subjectIDKey{}).(string); ok {
		return id
	}
	return ""
}

// errorCodeSetter is implemented by the logging middleware's response
// writer so error responses can attach a machine-readable code to the
// access log entry.
type errorCodeSetter interface {
	setErrorCode(code string)
}

// SetResponseErrorCode records an error code on the response writer for
// the access log. Handlers call this when writing error envelopes; it is
// a no-op when the writer is not wrapped by the logging middleware.
func SetResponseErrorCode(w http.ResponseWriter, code string) {
	if s, ok := w.(errorCodeSetter); ok {
		s.setErrorCode(code)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code,
// response size, and the error code set by handlers.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	errorCode   string
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
// Only the first call sets the status code; subsequent calls are ignored
// to match http.ResponseWriter behavior where only the first status is sent.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func (rw *responseWriter) setErrorCode(code string) {
	rw.errorCode = code
}

// newResponseWriter creates a new responseWriter with default 200 status.
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// NewLogger creates an slog.Logger based on the environment.
// In production (env == "production"), it returns a JSON handler.
// Otherwise, it returns a text handler for development.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.New(handler)
}

// Logging is a middleware that logs HTTP requests with structured fields:
// method, path, status, latency (ms), request ID, subject ID (if
// authenticated), response size, and error_code (for error responses).
//
// Note: If a handler panics, the log entry will not be written. To ensure
// logging even on panics, place a recovery middleware outside of this one.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			latency := time.Since(start).Milliseconds()

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", latency),
				slog.Int("size", rw.size),
			}

			if requestID := GetRequestID(r.Context()); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}

			if subjectID := GetSubjectID(r.Context()); subjectID != "" {
				attrs = append(attrs, slog.String("subject_id", subjectID))
			}

			if rw.statusCode >= 400 && rw.errorCode != "" {
				attrs = append(attrs, slog.String("error_code", rw.errorCode))
			}

			if rw.statusCode >= 500 {
				logger.LogAttrs(r.Context(), slog.LevelError, "request completed", attrs...)
			} else if rw.statusCode >= 400 {
				logger.LogAttrs(r.Context(), slog.LevelWarn, "request completed", attrs...)
			} else {
				logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
			}
		})
	}
}
