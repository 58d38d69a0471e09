// Package hashing implements an offline embedding provider that maps the
// terms of a text into a fixed number of buckets (the hashing trick).
// It needs no corpus preparation, so chunks and queries embedded at
// different times land in the same vector space.
package hashing

import (
	"context"
	"hash/fnv"
	"math"

	"ragcore/internal/embedding"
	"ragcore/internal/textutil"
)

// DefaultDimension is the vector size used when none is configured.
const DefaultDimension = 256

// Embedder is a deterministic feature-hashing vectorizer.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder producing vectors of the given
// dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// EmbedBatch embeds every text locally. Texts without any term embed to the
// zero vector.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]embedding.Response, error) {
	out := make([]embedding.Response, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = embedding.Vector(e.Embed(text))
	}
	return out, nil
}

// Embed computes the term-frequency weighted, L2-normalized hash vector of text.
func (e *Embedder) Embed(text string) []float64 {
	vec := make([]float64, e.dimension)
	terms := textutil.Terms(text)
	if len(terms) == 0 {
		return vec
	}
	weight := 1.0 / float64(len(terms))
	for _, term := range terms {
		idx, sign := e.bucket(term)
		vec[idx] += sign * weight
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// bucket picks the vector slot for term and a sign that keeps colliding
// terms from always reinforcing each other.
func (e *Embedder) bucket(term string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(e.dimension)), sign
}

var _ embedding.Provider = (*Embedder)(nil)
