package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Chunk is a bounded segment of source text paired with its embedding.
type Chunk struct {
	Index     int
	Text      string
	Embedding []float64
}

// Collection is the ordered, immutable set of chunks built from one source
// document. All embeddings in a collection share one dimensionality.
type Collection struct {
	chunks    []Chunk
	dimension int
}

// NewCollection zips texts and vectors positionally into a collection.
// It fails rather than build a collection that breaks the dimensionality
// invariant.
func NewCollection(texts []string, vectors [][]float64) (*Collection, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: collection needs at least one chunk", ErrInvalidInput)
	}
	if len(texts) != len(vectors) {
		return nil, fmt.Errorf("%w: %d texts but %d vectors", ErrInvalidInput, len(texts), len(vectors))
	}
	dim := len(vectors[0])
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("%w: chunk %d is blank", ErrInvalidInput, i)
		}
		if len(vectors[i]) == 0 {
			return nil, fmt.Errorf("%w: chunk %d has an empty embedding", ErrInvalidInput, i)
		}
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(vectors[i]), dim)
		}
		chunks[i] = Chunk{Index: i, Text: text, Embedding: slices.Clone(vectors[i])}
	}
	return &Collection{chunks: chunks, dimension: dim}, nil
}

// Len returns the number of chunks.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.chunks)
}

// Dimension returns the embedding dimensionality shared by every chunk.
func (c *Collection) Dimension() int {
	if c == nil {
		return 0
	}
	return c.dimension
}

// At returns the chunk at position i. Its embedding must not be modified.
func (c *Collection) At(i int) Chunk { return c.chunks[i] }

// Chunks returns the chunks in collection order. The slice is a copy; the
// embeddings are shared and must be treated as read-only.
func (c *Collection) Chunks() []Chunk {
	if c == nil {
		return nil
	}
	return slices.Clone(c.chunks)
}

// Texts returns the chunk texts in collection order.
func (c *Collection) Texts() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.chunks))
	for i, ch := range c.chunks {
		out[i] = ch.Text
	}
	return out
}
