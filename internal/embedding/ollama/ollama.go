// Package ollama implements an embedding provider for Ollama's batch
// embedding API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ragcore/internal/domain"
	"ragcore/internal/embedding"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "nomic-embed-text"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Embedder wraps Ollama's /api/embed endpoint.
type Embedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// Config holds configuration for the Ollama embedder.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Model defaults to DefaultEmbeddingModel.
	Model   string
	Timeout time.Duration
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func NewEmbedder(cfg Config) *Embedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Embedder{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "ollama" }

// EmbedBatch embeds all texts in one request. The responses mirror what
// Ollama returned, so a short answer stays short for the caller to reject.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]embedding.Response, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, e.fail(0, false, fmt.Errorf("marshaling request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, e.fail(0, false, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		// the caller's deadline or cancellation is final
		transient := ctx.Err() == nil && !errors.Is(err, context.Canceled)
		return nil, e.fail(0, transient, fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &domain.ProviderError{
			Kind:       domain.ErrRateLimited,
			Provider:   e.Name(),
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, e.fail(resp.StatusCode, resp.StatusCode >= 500,
			fmt.Errorf("ollama returned %s: %s", resp.Status, bytes.TrimSpace(msg)))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, e.fail(resp.StatusCode, false, fmt.Errorf("decoding response: %w", err))
	}
	responses := make([]embedding.Response, len(out.Embeddings))
	for i, v := range out.Embeddings {
		responses[i] = embedding.Vector(v)
	}
	return responses, nil
}

func (e *Embedder) fail(status int, transient bool, err error) error {
	return &domain.ProviderError{
		Kind:       domain.ErrEmbeddingUnavailable,
		Provider:   e.Name(),
		StatusCode: status,
		Transient:  transient,
		Err:        err,
	}
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

var _ embedding.Provider = (*Embedder)(nil)
