package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"ragcore/internal/domain"
	"ragcore/internal/embedding"
)

const (
	// DefaultBaseURL is the public OpenAI API.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"

	// DefaultAPIKeyEnv names the environment variable holding the API key.
	DefaultAPIKeyEnv = "OPENAI_API_KEY"
)

// Client is an OpenAI-compatible embeddings provider.
type Client struct {
	client     *goopenai.Client
	model      string
	dimensions int
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	// Dimensions asks models that support it for shorter vectors; 0 keeps
	// the model's native size.
	Dimensions int
	Timeout    time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}

	oc := goopenai.DefaultConfig(key)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{Timeout: t}
	return &Client{
		client:     goopenai.NewClientWithConfig(oc),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Model returns the embedding model in use.
func (c *Client) Model() string { return c.model }

// EmbedBatch sends all texts in one embeddings request. Vectors are placed by
// the index the API reports, not by the order of the response items.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([]embedding.Response, error) {
	resp, err := c.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:      texts,
		Model:      goopenai.EmbeddingModel(c.model),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, classify(err)
	}

	out := make([]embedding.Response, len(texts))
	filled := make([]bool, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			continue
		}
		if filled[d.Index] {
			out[d.Index] = embedding.Failure(fmt.Sprintf("duplicate embedding for index %d", d.Index))
			continue
		}
		filled[d.Index] = true
		v := make([]float64, len(d.Embedding))
		for i, x := range d.Embedding {
			v[i] = float64(x)
		}
		out[d.Index] = embedding.Vector(v)
	}
	for i, ok := range filled {
		if !ok {
			out[i] = embedding.Failure(fmt.Sprintf("no embedding returned for index %d", i))
		}
	}
	return out, nil
}

// classify maps a go-openai error onto the provider error taxonomy.
func classify(err error) error {
	status := 0
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	pe := &domain.ProviderError{
		Kind:       domain.ErrEmbeddingUnavailable,
		Provider:   "openai",
		StatusCode: status,
		Err:        err,
	}
	switch {
	case status == http.StatusTooManyRequests:
		pe.Kind = domain.ErrRateLimited
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	case status == 0 || status >= 500:
		pe.Transient = true
	}
	return pe
}

var _ embedding.Provider = (*Client)(nil)
