// Package auth provides bearer-credential verification for the API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

// ErrInvalidToken is returned when token validation fails.
var ErrInvalidToken = errors.New("invalid token")

// ErrExpiredToken is returned when the token has expired.
var ErrExpiredToken = errors.New("token has expired")

// Identity is the verified subject extracted from a bearer credential.
type Identity struct {
	SubjectID string
	Email     string
}

// Claims represents the JWT claims this service reads.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Verifier validates bearer tokens and extracts the caller's identity.
// Supports dual-key rotation: tokens are validated with currentSecret
// first, then previousSecret when one is configured.
type Verifier struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
}

// NewVerifier creates a Verifier with the given secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		currentSecret: []byte(secret),
		leeway:        DefaultLeeway,
	}
}

// NewVerifierWithRotation creates a Verifier that accepts tokens signed
// with either secret, for zero-downtime key rotation. Pass an empty
// previousSecret when no rotation is in progress.
func NewVerifierWithRotation(currentSecret, previousSecret string) *Verifier {
	v := &Verifier{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
	}
	if previousSecret != "" {
		v.previousSecret = []byte(previousSecret)
	}
	return v
}

// Verify parses and validates a bearer token, returning the caller's
// identity. Returns ErrExpiredToken for expired tokens and
// ErrInvalidToken for anything else that fails validation.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	claims, err := v.parse(tokenString, v.currentSecret)
	if err != nil && v.previousSecret != nil {
		var prevErr error
		claims, prevErr = v.parse(tokenString, v.previousSecret)
		if prevErr == nil {
			err = nil
		}
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{SubjectID: claims.Subject, Email: claims.Email}, nil
}

func (v *Verifier) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithLeeway(v.leeway))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
