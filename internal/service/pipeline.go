package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ragcore/internal/chunker"
	"ragcore/internal/domain"
	"ragcore/internal/embedding"
	"ragcore/internal/index"
)

// DefaultTopK is the number of chunks returned when callers do not choose one.
const DefaultTopK = 5

// Config holds the tunables of a Pipeline.
type Config struct {
	// MaxChunkSize is the chunk size in characters. Default 500.
	MaxChunkSize int
	// BatchSize is the number of texts per embedding request. Default 10.
	BatchSize int
	// MaxConcurrency caps in-flight embedding requests; 0 runs every batch
	// at once.
	MaxConcurrency int
	// TopK is the default number of chunks to retrieve. Default 5.
	TopK int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize: chunker.DefaultMaxChunkSize,
		BatchSize:    embedding.DefaultBatchSize,
		TopK:         DefaultTopK,
	}
}

// Pipeline composes chunking, embedding and ranking. It holds no per-document
// state: collections are returned to and owned by the caller.
type Pipeline struct {
	chunker  *chunker.SentenceChunker
	embedder *embedding.Batcher
	topK     int
	logger   *slog.Logger
}

func NewPipeline(provider embedding.Provider, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Pipeline{
		chunker: chunker.NewSentenceChunker(cfg.MaxChunkSize),
		embedder: embedding.NewBatcher(provider,
			embedding.WithBatchSize(cfg.BatchSize),
			embedding.WithMaxConcurrency(cfg.MaxConcurrency),
			embedding.WithLogger(logger),
		),
		topK:   topK,
		logger: logger,
	}
}

// DefaultTopK returns the configured number of chunks to retrieve.
func (p *Pipeline) DefaultTopK() int { return p.topK }

// BuildCollection chunks rawText, embeds every chunk and returns the indexed
// collection. It either succeeds completely or returns an error.
func (p *Pipeline) BuildCollection(ctx context.Context, rawText string) (*domain.Collection, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("%w: source text is blank", domain.ErrInvalidInput)
	}
	texts := p.chunker.Chunk(rawText)
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: source text produced no chunks", domain.ErrInvalidInput)
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding chunks: %w", err)
	}
	c, err := domain.NewCollection(texts, vectors)
	if err != nil {
		return nil, fmt.Errorf("building collection: %w", err)
	}
	p.logger.Debug("collection built",
		"chunks", c.Len(),
		"dimension", c.Dimension(),
		"max_chunk_size", p.chunker.MaxChunkSize(),
	)
	return c, nil
}

// Retrieve embeds query and returns the k chunks of c most relevant to it.
func (p *Pipeline) Retrieve(ctx context.Context, query string, c *domain.Collection, k int) ([]domain.Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is blank", domain.ErrInvalidInput)
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: k must not be negative, got %d", domain.ErrInvalidInput, k)
	}
	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return p.RetrieveVector(vectors[0], c, k)
}

// RetrieveVector returns the k chunks of c most similar to an already
// embedded query.
func (p *Pipeline) RetrieveVector(query []float64, c *domain.Collection, k int) ([]domain.Chunk, error) {
	chunks, err := index.TopK(query, c, k)
	if err != nil {
		return nil, fmt.Errorf("ranking chunks: %w", err)
	}
	p.logger.Debug("chunks retrieved", "k", k, "returned", len(chunks), "candidates", c.Len())
	return chunks, nil
}

// FormatContext joins chunk texts with newlines, ready to ground a generator.
func FormatContext(chunks []domain.Chunk) string {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return strings.Join(texts, "\n")
}
