package question

import (
	"context"
	"sort"
	"sync"
)

// Repository defines the data operations for questions. Precomputed
// embedding blobs are stored alongside questions so restarts do not need
// to re-embed every candidate answer; a nil blob means none is stored.
type Repository interface {
	// GetByID retrieves a question by its ID.
	// Returns ErrQuestionNotFound if the question doesn't exist.
	GetByID(ctx context.Context, id int) (*Question, error)

	// List returns all questions, ordered by ID.
	List(ctx context.Context) ([]Question, error)

	// Embeddings returns the stored embedding blob for a question, or
	// nil when none has been saved.
	Embeddings(ctx context.Context, id int) ([]byte, error)

	// SaveEmbeddings stores the embedding blob for a question,
	// replacing any previous one.
	SaveEmbeddings(ctx context.Context, id int, blob []byte) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development.
type InMemoryRepository struct {
	mu         sync.RWMutex
	questions  map[int]*Question
	embeddings map[int][]byte
}

// NewInMemoryRepository creates a new in-memory question repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		questions:  make(map[int]*Question),
		embeddings: make(map[int][]byte),
	}
}

// Put stores a question, replacing any existing one with the same ID.
func (r *InMemoryRepository) Put(q *Question) {
	r.mu.Lock()
	defer r.mu.Unlock()

	qCopy := *q
	qCopy.Answers = append([]string(nil), q.Answers...)
	r.questions[q.ID] = &qCopy
}

// GetByID retrieves a question by its ID.
func (r *InMemoryRepository) GetByID(_ context.Context, id int) (*Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.questions[id]
	if !ok {
		return nil, ErrQuestionNotFound
	}
	qCopy := *q
	qCopy.Answers = append([]string(nil), q.Answers...)
	return &qCopy, nil
}

// List returns all questions, ordered by ID.
func (r *InMemoryRepository) List(_ context.Context) ([]Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Question, 0, len(r.questions))
	for _, q := range r.questions {
		qCopy := *q
		qCopy.Answers = append([]string(nil), q.Answers...)
		out = append(out, qCopy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Embeddings returns the stored embedding blob for a question.
func (r *InMemoryRepository) Embeddings(_ context.Context, id int) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	blob, ok := r.embeddings[id]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

// SaveEmbeddings stores the embedding blob for a question.
func (r *InMemoryRepository) SaveEmbeddings(_ context.Context, id int, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := make([]byte, len(blob))
	copy(stored, blob)
	r.embeddings[id] = stored
	return nil
}
