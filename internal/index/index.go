// Package index ranks the chunks of a collection against a query vector by
// cosine similarity.
//
// Ranking is an exact brute-force scan, O(n·D) per query. That is the right
// trade while a collection holds one document's chunks (low hundreds); it is
// a scaling limit, not a general-purpose vector index.
package index

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"ragcore/internal/domain"
)

// Cosine returns the cosine of the angle between a and b, in [-1, 1].
// A zero-magnitude vector scores 0 against everything, itself included.
func Cosine(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: zero-length vector", domain.ErrInvalidInput)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return max(-1, min(1, s)), nil
}

// match pairs a chunk position with its score; it never leaves this package.
type match struct {
	pos   int
	score float64
}

// TopK returns the k chunks of c most similar to query, best first. Ties keep
// collection order. k larger than the collection returns every chunk.
// TopK only reads c and is safe for concurrent use.
func TopK(query []float64, c *domain.Collection, k int) ([]domain.Chunk, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: k must not be negative, got %d", domain.ErrInvalidInput, k)
	}
	if k == 0 || c.Len() == 0 {
		return []domain.Chunk{}, nil
	}
	if len(query) != c.Dimension() {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d",
			domain.ErrDimensionMismatch, len(query), c.Dimension())
	}

	matches := make([]match, c.Len())
	for i := range matches {
		score, err := Cosine(query, c.At(i).Embedding)
		if err != nil {
			return nil, err
		}
		matches[i] = match{pos: i, score: score}
	}
	slices.SortStableFunc(matches, func(a, b match) int {
		return cmp.Compare(b.score, a.score)
	})

	k = min(k, len(matches))
	out := make([]domain.Chunk, k)
	for i := range out {
		out[i] = c.At(matches[i].pos)
	}
	return out, nil
}
