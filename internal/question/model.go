// Package question provides the reference-record model and repositories
// for quiz questions and their candidate answers.
package question

import "errors"

// ErrQuestionNotFound is returned when no question exists for an ID.
var ErrQuestionNotFound = errors.New("question not found")

// Question is a quiz question with its reference answers. Answers are
// the scoreable candidates a submission is compared against; their order
// is significant (ties in similarity break on first occurrence).
type Question struct {
	ID      int      `json:"id"`
	Text    string   `json:"question_text"`
	Answers []string `json:"answers"`
}
