package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 44-character base64 string, as produced by `openssl rand -base64 32`
const testSecret = "wJ6Qk8Qn1v9Qw1Zb2l8Qk9J3p6Qk8Qn1v9Qw1Zb2l8Qk="

func signToken(t *testing.T, secret string, subject, email string, expiresIn time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
		Email: email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestVerify(t *testing.T) {
	verifier := NewVerifier(testSecret)

	tests := []struct {
		name      string
		token     string
		wantSub   string
		wantEmail string
		wantErr   error
	}{
		{
			name:      "valid token",
			token:     signToken(t, testSecret, "user-123", "u@example.com", time.Hour),
			wantSub:   "user-123",
			wantEmail: "u@example.com",
		},
		{
			name:    "valid token without email",
			token:   signToken(t, testSecret, "user-456", "", time.Hour),
			wantSub: "user-456",
		},
		{
			name:    "expired token",
			token:   signToken(t, testSecret, "user-123", "", -time.Hour),
			wantErr: ErrExpiredToken,
		},
		{
			name:    "wrong secret",
			token:   signToken(t, "another-secret-another-secret-another!!!", "user-123", "", time.Hour),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "missing subject",
			token:   signToken(t, testSecret, "", "", time.Hour),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "malformed token",
			token:   "not.a.jwt",
			wantErr: ErrInvalidToken,
		},
		{
			name:    "empty token",
			token:   "",
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := verifier.Verify(tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if identity.SubjectID != tt.wantSub {
				t.Errorf("SubjectID = %q, want %q", identity.SubjectID, tt.wantSub)
			}
			if identity.Email != tt.wantEmail {
				t.Errorf("Email = %q, want %q", identity.Email, tt.wantEmail)
			}
		})
	}
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	// Token signed with none algorithm must be rejected.
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	verifier := NewVerifier(testSecret)
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWithRotation(t *testing.T) {
	const oldSecret = "old-secret-old-secret-old-secret-old!!!!"
	verifier := NewVerifierWithRotation(testSecret, oldSecret)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:  "current secret accepted",
			token: signToken(t, testSecret, "user-1", "", time.Hour),
		},
		{
			name:  "previous secret accepted",
			token: signToken(t, oldSecret, "user-2", "", time.Hour),
		},
		{
			name:    "unrelated secret rejected",
			token:   signToken(t, "thirdsecret-thirdsecret-thirdsecret!!!!!", "user-3", "", time.Hour),
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("Verify() error = %v", err)
			}
		})
	}
}
