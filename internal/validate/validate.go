// Package validate provides input validation for the scoring API's
// user-supplied fields.
package validate

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation errors. Callers can match these with errors.Is to pick an
// appropriate HTTP status.
var (
	ErrEmpty        = errors.New("value is empty")
	ErrTooLong      = errors.New("value is too long")
	ErrInvalidChars = errors.New("value contains invalid characters")
	ErrNotFinite    = errors.New("value must be a finite number")
	ErrOutOfRange   = errors.New("value is out of range")
	ErrNotPositive  = errors.New("value must be positive")
)

const (
	// MaxAnswerLength bounds submitted answer text. Longer submissions
	// would blow up embedding latency for no scoring benefit.
	MaxAnswerLength = 2000

	// MaxUserIDLength bounds leaderboard member identifiers.
	MaxUserIDLength = 64
)

// userIDPattern restricts member identifiers to characters safe for
// Redis keys and URL path segments.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-\.@]+$`)

// AnswerText validates and trims a submitted answer. Returns the
// trimmed text.
func AnswerText(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("answer_text: %w", ErrEmpty)
	}
	if utf8.RuneCountInString(s) > MaxAnswerLength {
		return "", fmt.Errorf("answer_text: %w: maximum is %d characters", ErrTooLong, MaxAnswerLength)
	}
	return s, nil
}

// UserID validates a leaderboard member identifier. Returns the
// trimmed identifier.
func UserID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("user_id: %w", ErrEmpty)
	}
	if utf8.RuneCountInString(s) > MaxUserIDLength {
		return "", fmt.Errorf("user_id: %w: maximum is %d characters", ErrTooLong, MaxUserIDLength)
	}
	if !userIDPattern.MatchString(s) {
		return "", fmt.Errorf("user_id: %w", ErrInvalidChars)
	}
	return s, nil
}

// QuestionID validates a question identifier.
func QuestionID(id int) error {
	if id <= 0 {
		return fmt.Errorf("question_id: %w", ErrNotPositive)
	}
	return nil
}

// ScoreDelta validates a leaderboard score adjustment.
func ScoreDelta(delta float64) error {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return fmt.Errorf("delta: %w", ErrNotFinite)
	}
	return nil
}

// TopN validates a top-N query size against the given maximum.
func TopN(n, limit int) error {
	if n < 1 || n > limit {
		return fmt.Errorf("n: %w: must be between 1 and %d", ErrOutOfRange, limit)
	}
	return nil
}
