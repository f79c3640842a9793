package question

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/tonequest/api/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL. Candidate
// answers are stored as a text[] column and precomputed embedding blobs
// as a nullable bytea column.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// GetByID retrieves a question by its ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id int) (_ *Question, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "questions", "select")
	defer func() { endSpan(err) }()

	const query = `
		SELECT id, question_text, answers
		FROM questions
		WHERE id = $1
	`
	var q Question
	var answers pq.StringArray
	err = r.db.QueryRowContext(ctx, query, id).Scan(&q.ID, &q.Text, &answers)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("question: get %d: %w", id, err)
	}
	q.Answers = []string(answers)
	return &q, nil
}

// List returns all questions, ordered by ID.
func (r *PostgresRepository) List(ctx context.Context) (_ []Question, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "questions", "select")
	defer func() { endSpan(err) }()

	const query = `
		SELECT id, question_text, answers
		FROM questions
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("question: list: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("failed to close rows", "error", err)
		}
	}()

	var out []Question
	for rows.Next() {
		var q Question
		var answers pq.StringArray
		if err := rows.Scan(&q.ID, &q.Text, &answers); err != nil {
			return nil, fmt.Errorf("question: scan: %w", err)
		}
		q.Answers = []string(answers)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("question: iterate: %w", err)
	}
	return out, nil
}

// Embeddings returns the stored embedding blob for a question, or nil
// when none has been saved.
func (r *PostgresRepository) Embeddings(ctx context.Context, id int) (_ []byte, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "questions", "select")
	defer func() { endSpan(err) }()

	const query = `
		SELECT embeddings
		FROM questions
		WHERE id = $1
	`
	var blob []byte
	err = r.db.QueryRowContext(ctx, query, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("question: embeddings %d: %w", id, err)
	}
	return blob, nil
}

// SaveEmbeddings stores the embedding blob for a question.
func (r *PostgresRepository) SaveEmbeddings(ctx context.Context, id int, blob []byte) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "questions", "update")
	defer func() { endSpan(err) }()

	const query = `
		UPDATE questions
		SET embeddings = $2
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, blob)
	if err != nil {
		return fmt.Errorf("question: save embeddings %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("question: save embeddings %d: %w", id, err)
	}
	if affected == 0 {
		return ErrQuestionNotFound
	}
	return nil
}
