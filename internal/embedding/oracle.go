// Package embedding provides the similarity oracle boundary: computing
// embedding vectors for texts via an external inference service and
// scoring cosine similarity between them.
package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrDimensionMismatch is returned when two vectors of different lengths
// are compared.
var ErrDimensionMismatch = errors.New("embedding vectors have different dimensions")

// Vector is a dense embedding of a text.
type Vector []float32

// Oracle produces embedding vectors for texts. Implementations call an
// external model, so every method must honor context cancellation.
type Oracle interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([]Vector, error)
}

// CosineSimilarity returns the cosine similarity of a and b, in
// [-1.0, 1.0]. A zero vector yields similarity 0 against anything.
func CosineSimilarity(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Similarities returns the cosine similarity of query against each
// reference vector, in reference order.
func Similarities(query Vector, refs []Vector) ([]float64, error) {
	scores := make([]float64, len(refs))
	for i, ref := range refs {
		s, err := CosineSimilarity(query, ref)
		if err != nil {
			return nil, err
		}
		scores[i] = s
	}
	return scores, nil
}

// BestMatch returns the index and value of the highest score. Ties break
// on first occurrence. The index is -1 for an empty slice.
func BestMatch(scores []float64) (int, float64) {
	best := -1
	bestScore := math.Inf(-1)
	for i, s := range scores {
		if s > bestScore {
			best = i
			bestScore = s
		}
	}
	if best == -1 {
		return -1, 0
	}
	return best, bestScore
}
