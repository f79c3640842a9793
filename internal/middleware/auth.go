package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tonequest/api/internal/auth"
)

// TokenVerifier validates a bearer token and returns the caller's identity.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// Authenticate is a middleware that requires a valid bearer token.
// On success the subject ID is stored in the request context for
// downstream handlers and the access log. Expired and invalid tokens
// both yield 401, with distinct messages.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, "missing bearer token")
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					writeAuthError(w, "token has expired")
					return
				}
				writeAuthError(w, "invalid token")
				return
			}

			ctx := SetSubjectID(r.Context(), identity.SubjectID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// writeAuthError writes a 401 response with the standard error envelope.
// The envelope is written here rather than through the api package to
// keep the middleware free of handler dependencies.
func writeAuthError(w http.ResponseWriter, message string) {
	SetResponseErrorCode(w, "auth_failed")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "auth_failed",
			"message": message,
		},
	})
}
