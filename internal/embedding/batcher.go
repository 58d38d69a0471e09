package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ragcore/internal/domain"
)

// DefaultBatchSize is the number of texts sent to the provider per request.
const DefaultBatchSize = 10

// Batcher splits texts into fixed-size batches, sends all batches to the
// provider concurrently and reassembles the vectors in input order.
type Batcher struct {
	provider       Provider
	batchSize      int
	maxConcurrency int
	logger         *slog.Logger
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithBatchSize sets the number of texts per provider request.
func WithBatchSize(n int) Option {
	return func(b *Batcher) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithMaxConcurrency caps the number of batches in flight. Zero means one
// goroutine per batch.
func WithMaxConcurrency(n int) Option {
	return func(b *Batcher) {
		if n >= 0 {
			b.maxConcurrency = n
		}
	}
}

// WithLogger sets the logger used for batch diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Batcher) {
		if l != nil {
			b.logger = l
		}
	}
}

func NewBatcher(provider Provider, opts ...Option) *Batcher {
	b := &Batcher{
		provider:  provider,
		batchSize: DefaultBatchSize,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BatchSize returns the configured batch size.
func (b *Batcher) BatchSize() int { return b.batchSize }

// Embed returns one vector per text, in the order of texts. Any failed,
// short or malformed batch fails the whole call; no partial result is
// returned.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	out := make([][]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	if b.maxConcurrency > 0 {
		g.SetLimit(b.maxConcurrency)
	}
	batches := 0
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		batches++
		g.Go(func() error {
			return b.embedBatch(gctx, texts[start:end], out[start:end], start)
		})
	}
	b.logger.Debug("embedding batches dispatched",
		"provider", b.provider.Name(),
		"texts", len(texts),
		"batches", batches,
	)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(out[0])
	for i, v := range out {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: %s returned %d dimensions for text %d, expected %d",
				domain.ErrEmbeddingUnavailable, b.provider.Name(), len(v), i, dim)
		}
	}
	return out, nil
}

// embedBatch fills slots, which is the batch's own window of the output.
func (b *Batcher) embedBatch(ctx context.Context, texts []string, slots [][]float64, offset int) error {
	responses, err := b.provider.EmbedBatch(ctx, texts)
	if err != nil {
		if !errors.Is(err, domain.ErrRateLimited) && !errors.Is(err, domain.ErrEmbeddingUnavailable) {
			err = &domain.ProviderError{
				Kind:     domain.ErrEmbeddingUnavailable,
				Provider: b.provider.Name(),
				Err:      err,
			}
		}
		return fmt.Errorf("embedding batch at %d: %w", offset, err)
	}
	if len(responses) != len(texts) {
		return fmt.Errorf("%w: %s returned %d vectors for %d texts",
			domain.ErrEmbeddingUnavailable, b.provider.Name(), len(responses), len(texts))
	}
	for i, r := range responses {
		if !r.OK() {
			return fmt.Errorf("%w: %s: text %d: %s",
				domain.ErrEmbeddingUnavailable, b.provider.Name(), offset+i, r.Reason())
		}
		slots[i] = r.Vector()
	}
	return nil
}
