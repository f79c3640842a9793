// Package scoring orchestrates answer evaluation: resolving a cached
// reference record, scoring the submission against candidate answers via
// the embedding oracle, and reporting score deltas to the leaderboard.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonequest/api/internal/cache"
	"github.com/tonequest/api/internal/embedding"
	"github.com/tonequest/api/internal/leaderboard"
	"github.com/tonequest/api/internal/question"
)

// ErrNoReferenceData is returned when a question exists but has no
// scoreable candidate answers.
var ErrNoReferenceData = errors.New("question has no reference answers to score against")

// Record is the materialized reference record held in the cache: a
// question plus the precomputed embeddings of its candidate answers.
// Embeddings is empty iff Answers is empty, otherwise aligned 1:1.
type Record struct {
	Question   question.Question
	Embeddings []embedding.Vector
}

// SampleScore pairs a candidate answer with its similarity score.
type SampleScore struct {
	Sample string  `json:"sample"`
	Score  float64 `json:"score"`
}

// Result is the outcome of evaluating one submission.
type Result struct {
	QuestionID      int
	Question        string
	BestMatchSample string
	SimilarityScore float64
	AllScores       []SampleScore
}

// reportTimeout bounds the fire-and-forget leaderboard update. It runs
// on a background context so a cancelled request cannot abort it.
const reportTimeout = 5 * time.Second

// warmupConcurrency limits parallel embedding calls during cache warmup.
const warmupConcurrency = 4

// Service evaluates submissions. Construct with NewService; all fields
// are fixed after construction so the service is safe for concurrent use.
type Service struct {
	questions question.Repository
	oracle    embedding.Oracle
	store     leaderboard.Store
	cache     *cache.Cache[int, *Record]
	logger    *slog.Logger
	onDelta   func()
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLeaderboard enables score reporting to the given store.
func WithLeaderboard(store leaderboard.Store) ServiceOption {
	return func(s *Service) { s.store = store }
}

// WithDeltaCallback registers a callback invoked after every
// successfully applied leaderboard delta (used to wake live streams).
func WithDeltaCallback(fn func()) ServiceOption {
	return func(s *Service) { s.onDelta = fn }
}

// NewService creates a Service. The cache governs reference-record TTL
// and capacity; pass nil logger to use slog.Default.
func NewService(questions question.Repository, oracle embedding.Oracle, recordCache *cache.Cache[int, *Record], logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		questions: questions,
		oracle:    oracle,
		cache:     recordCache,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache exposes the reference-record cache for administrative handlers.
func (s *Service) Cache() *cache.Cache[int, *Record] {
	return s.cache
}

// Evaluate scores answerText against the candidate answers of the given
// question. When submitterID is non-empty and a leaderboard is
// configured, the best similarity score is forwarded as a delta in the
// background; a failed delta never fails the evaluation.
func (s *Service) Evaluate(ctx context.Context, questionID int, answerText string, submitterID string, forceRefresh bool) (*Result, error) {
	rec, err := s.cache.GetOrPopulate(ctx, questionID, 0, forceRefresh, func(ctx context.Context) (*Record, error) {
		return s.loadRecord(ctx, questionID)
	})
	if err != nil {
		return nil, err
	}

	if len(rec.Embeddings) == 0 {
		return nil, ErrNoReferenceData
	}

	userVectors, err := s.oracle.Embed(ctx, []string{answerText})
	if err != nil {
		return nil, fmt.Errorf("embed submission: %w", err)
	}
	if len(userVectors) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one text", embedding.ErrUpstream, len(userVectors))
	}

	scores, err := embedding.Similarities(userVectors[0], rec.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("score submission: %w", err)
	}

	bestIdx, bestScore := embedding.BestMatch(scores)
	result := &Result{
		QuestionID:      questionID,
		Question:        rec.Question.Text,
		BestMatchSample: rec.Question.Answers[bestIdx],
		SimilarityScore: bestScore,
		AllScores:       make([]SampleScore, len(scores)),
	}
	for i, score := range scores {
		result.AllScores[i] = SampleScore{Sample: rec.Question.Answers[i], Score: score}
	}

	if s.store != nil && submitterID != "" {
		go s.reportDelta(submitterID, bestScore)
	}
	return result, nil
}

// loadRecord fetches the question and materializes its answer
// embeddings, preferring a stored blob over a fresh oracle call.
func (s *Service) loadRecord(ctx context.Context, questionID int) (*Record, error) {
	q, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if len(q.Answers) == 0 {
		return &Record{Question: *q}, nil
	}

	if vectors, ok := s.storedEmbeddings(ctx, q); ok {
		return &Record{Question: *q, Embeddings: vectors}, nil
	}

	vectors, err := s.oracle.Embed(ctx, q.Answers)
	if err != nil {
		return nil, fmt.Errorf("embed answers for question %d: %w", questionID, err)
	}

	if blob, err := embedding.EncodeVectors(vectors); err != nil {
		s.logger.Warn("failed to encode embeddings for storage", "question_id", questionID, "error", err)
	} else if err := s.questions.SaveEmbeddings(ctx, questionID, blob); err != nil {
		s.logger.Warn("failed to persist embeddings", "question_id", questionID, "error", err)
	}

	return &Record{Question: *q, Embeddings: vectors}, nil
}

// storedEmbeddings returns previously persisted embeddings for q when a
// usable blob exists. A stale blob (answer count changed) is ignored.
func (s *Service) storedEmbeddings(ctx context.Context, q *question.Question) ([]embedding.Vector, bool) {
	blob, err := s.questions.Embeddings(ctx, q.ID)
	if err != nil || blob == nil {
		return nil, false
	}
	vectors, err := embedding.DecodeVectors(blob)
	if err != nil {
		s.logger.Warn("discarding undecodable embedding blob", "question_id", q.ID, "error", err)
		return nil, false
	}
	if len(vectors) != len(q.Answers) {
		return nil, false
	}
	return vectors, true
}

// reportDelta forwards a score delta to the leaderboard. Failures are
// logged, never surfaced: a lost leaderboard write must not fail an
// otherwise-successful evaluation.
func (s *Service) reportDelta(memberID string, delta float64) {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	newScore, err := s.store.ApplyDelta(ctx, memberID, delta)
	if err != nil {
		s.logger.Error("leaderboard delta failed", "member_id", memberID, "delta", delta, "error", err)
		return
	}
	s.logger.Debug("leaderboard delta applied", "member_id", memberID, "delta", delta, "new_score", newScore)
	if s.onDelta != nil {
		s.onDelta()
	}
}

// Warmup pre-populates the record cache for every known question so the
// first submissions don't pay the embedding cost. Per-question failures
// are logged and skipped; only listing failures abort the warmup.
func (s *Service) Warmup(ctx context.Context) error {
	questions, err := s.questions.List(ctx)
	if err != nil {
		return fmt.Errorf("warmup: list questions: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(warmupConcurrency)
	for _, q := range questions {
		g.Go(func() error {
			_, err := s.cache.GetOrPopulate(ctx, q.ID, 0, false, func(ctx context.Context) (*Record, error) {
				return s.loadRecord(ctx, q.ID)
			})
			if err != nil {
				s.logger.Warn("warmup skipped question", "question_id", q.ID, "error", err)
			}
			return ctx.Err()
		})
	}
	return g.Wait()
}
