// Package testutil holds test doubles shared by package tests.
package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"ragcore/internal/domain"
	"ragcore/internal/embedding"
)

// MockProvider is an embedding provider that returns predictable vectors.
type MockProvider struct {
	// Vectors maps an input text to the vector returned for it.
	Vectors map[string][]float64

	// Default is returned for texts missing from Vectors.
	Default []float64

	// FailOn makes the batch containing this text fail as unavailable.
	FailOn string

	// RateLimitOn makes the batch containing this text fail as rate limited.
	RateLimitOn string

	// Short drops the last response of every batch with more than one text.
	Short bool

	// DelayFor, when set, delays the answer to a batch.
	DelayFor func(texts []string) time.Duration

	mu      sync.Mutex
	batches [][]string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		Vectors: make(map[string][]float64),
		Default: []float64{0.1, 0.2, 0.3},
	}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([]embedding.Response, error) {
	m.mu.Lock()
	m.batches = append(m.batches, slices.Clone(texts))
	m.mu.Unlock()

	if m.DelayFor != nil {
		select {
		case <-time.After(m.DelayFor(texts)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.RateLimitOn != "" && slices.Contains(texts, m.RateLimitOn) {
		return nil, &domain.ProviderError{
			Kind:       domain.ErrRateLimited,
			Provider:   m.Name(),
			StatusCode: 429,
			RetryAfter: time.Millisecond,
		}
	}
	if m.FailOn != "" && slices.Contains(texts, m.FailOn) {
		return nil, &domain.ProviderError{
			Kind:     domain.ErrEmbeddingUnavailable,
			Provider: m.Name(),
		}
	}

	out := make([]embedding.Response, 0, len(texts))
	for _, t := range texts {
		if v, ok := m.Vectors[t]; ok {
			out = append(out, embedding.Vector(v))
			continue
		}
		out = append(out, embedding.Vector(m.Default))
	}
	if m.Short && len(out) > 1 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// Batches returns the batches received so far.
func (m *MockProvider) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.batches)
}

// ResponderFunc adapts a function to embedding.Provider.
type ResponderFunc func(ctx context.Context, texts []string) ([]embedding.Response, error)

func (f ResponderFunc) Name() string { return "func" }

func (f ResponderFunc) EmbedBatch(ctx context.Context, texts []string) ([]embedding.Response, error) {
	return f(ctx, texts)
}

var (
	_ embedding.Provider = (*MockProvider)(nil)
	_ embedding.Provider = ResponderFunc(nil)
)
