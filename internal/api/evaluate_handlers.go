package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tonequest/api/internal/embedding"
	"github.com/tonequest/api/internal/middleware"
	"github.com/tonequest/api/internal/question"
	"github.com/tonequest/api/internal/scoring"
	"github.com/tonequest/api/internal/validate"
)

// EvaluateHandlers holds dependencies for answer evaluation endpoints.
type EvaluateHandlers struct {
	scoring *scoring.Service
}

// NewEvaluateHandlers creates a new EvaluateHandlers instance.
func NewEvaluateHandlers(svc *scoring.Service) *EvaluateHandlers {
	return &EvaluateHandlers{scoring: svc}
}

// EvaluateRequest is the request body for POST /evaluate_answer.
type EvaluateRequest struct {
	QuestionID   int    `json:"question_id"`
	AnswerText   string `json:"answer_text"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

// SampleScoreResponse pairs a candidate answer with its similarity score.
type SampleScoreResponse struct {
	Sample string  `json:"sample"`
	Score  float64 `json:"score"`
}

// EvaluateResponse is the response body for POST /evaluate_answer.
type EvaluateResponse struct {
	QuestionID      int                   `json:"question_id"`
	Question        string                `json:"question"`
	BestMatchSample string                `json:"best_match_sample"`
	SimilarityScore float64               `json:"similarity_score"`
	AllScores       []SampleScoreResponse `json:"all_scores"`
	SubmitterID     string                `json:"submitter_id,omitempty"`
}

// EvaluateAnswer handles POST /evaluate_answer.
// Scores the submitted answer against the question's candidate answers.
// Similarity scores are rounded to 3 decimals in the response.
func (h *EvaluateHandlers) EvaluateAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if err := validate.QuestionID(req.QuestionID); err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	answerText, err := validate.AnswerText(req.AnswerText)
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	submitterID := middleware.GetSubjectID(ctx)

	result, err := h.scoring.Evaluate(ctx, req.QuestionID, answerText, submitterID, req.ForceRefresh)
	if err != nil {
		writeEvaluateError(w, ctx, req.QuestionID, err)
		return
	}

	resp := EvaluateResponse{
		QuestionID:      result.QuestionID,
		Question:        result.Question,
		BestMatchSample: result.BestMatchSample,
		SimilarityScore: round(result.SimilarityScore, 3),
		AllScores:       make([]SampleScoreResponse, len(result.AllScores)),
		SubmitterID:     submitterID,
	}
	for i, s := range result.AllScores {
		resp.AllScores[i] = SampleScoreResponse{Sample: s.Sample, Score: round(s.Score, 3)}
	}

	writeJSON(w, ctx, http.StatusOK, resp)
}

// writeEvaluateError maps scoring errors to the API error envelope.
func writeEvaluateError(w http.ResponseWriter, ctx context.Context, questionID int, err error) {
	switch {
	case errors.Is(err, question.ErrQuestionNotFound):
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Question not found")
	case errors.Is(err, scoring.ErrNoReferenceData):
		WriteError(w, ctx, http.StatusUnprocessableEntity, ErrCodeNoReferenceData, "Question has no answer samples to score against")
	case errors.Is(err, embedding.ErrUpstream), errors.Is(err, context.DeadlineExceeded):
		slog.ErrorContext(ctx, "embedding oracle unavailable", "error", err, "question_id", questionID)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeUpstreamUnavailable, "Embedding service unavailable")
	default:
		slog.ErrorContext(ctx, "evaluation failed", "error", err, "question_id", questionID)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to evaluate answer")
	}
}
