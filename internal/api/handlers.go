package api

import (
	"context"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"ragcore/internal/domain"
	"ragcore/internal/loader"
	"ragcore/internal/retry"
	"ragcore/internal/service"
	"ragcore/internal/vectorstore"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateCollectionRequest is the body of POST /v1/collections.
type CreateCollectionRequest struct {
	Text string `json:"text"`
}

// CollectionResponse describes a stored collection.
type CollectionResponse struct {
	ID        string    `json:"id"`
	Chunks    int       `json:"chunks"`
	Dimension int       `json:"dimension"`
	Summary   string    `json:"summary"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChunkResponse is one retrieved chunk.
type ChunkResponse struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// SearchResponse lists the chunks most relevant to a query, best first.
type SearchResponse struct {
	Query   string          `json:"query"`
	Chunks  []ChunkResponse `json:"chunks"`
	Count   int             `json:"count"`
	Context string          `json:"context"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleCreateCollection handles POST /v1/collections with a JSON body.
func (s *Server) handleCreateCollection(c *fiber.Ctx) error {
	var req CreateCollectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	return s.ingest(c, req.Text)
}

// handleUpload handles POST /v1/collections/upload with a multipart "file"
// field holding a .txt, .md or .pdf document.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "missing file field"})
	}
	if !loader.Supported(fh.Filename) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "unsupported file type: " + fh.Filename})
	}
	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to open upload"})
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to read upload"})
	}
	text, err := loader.Parse(fh.Filename, data)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}
	return s.ingest(c, text)
}

func (s *Server) ingest(c *fiber.Ctx, text string) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	var coll *domain.Collection
	err := retry.Do(ctx, s.config.Retry, func(ctx context.Context) error {
		var err error
		coll, err = s.pipeline.BuildCollection(ctx, text)
		return err
	})
	if err != nil {
		return s.fail(c, "building collection", err)
	}
	sess, err := s.store.Save(ctx, coll)
	if err != nil {
		return s.fail(c, "saving collection", err)
	}
	s.logger.Info("collection created", "id", sess.ID, "chunks", coll.Len(), "dimension", coll.Dimension())
	return c.Status(fiber.StatusCreated).JSON(CollectionResponse{
		ID:        sess.ID,
		Chunks:    coll.Len(),
		Dimension: coll.Dimension(),
		Summary:   s.summarizer.Summarize(text),
		ExpiresAt: sess.ExpiresAt,
	})
}

// handleSearch handles GET /v1/collections/:id/search.
// Query parameters:
//   - query (required): the search query text
//   - top_k (optional, default from config): number of chunks to return
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if strings.TrimSpace(query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query parameter is required"})
	}
	topK := s.pipeline.DefaultTopK()
	if raw := c.Query("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "top_k must be a non-negative integer"})
		}
		topK = parsed
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	sess, err := s.store.Load(ctx, c.Params("id"))
	if err != nil {
		return s.fail(c, "loading collection", err)
	}
	var chunks []domain.Chunk
	err = retry.Do(ctx, s.config.Retry, func(ctx context.Context) error {
		var err error
		chunks, err = s.pipeline.Retrieve(ctx, query, sess.Collection, topK)
		return err
	})
	if err != nil {
		return s.fail(c, "retrieving chunks", err)
	}

	out := SearchResponse{
		Query:   query,
		Chunks:  make([]ChunkResponse, len(chunks)),
		Count:   len(chunks),
		Context: service.FormatContext(chunks),
	}
	for i, ch := range chunks {
		out.Chunks[i] = ChunkResponse{Index: ch.Index, Text: ch.Text}
	}
	return c.JSON(out)
}

// handleDeleteCollection handles DELETE /v1/collections/:id.
func (s *Server) handleDeleteCollection(c *fiber.Ctx) error {
	if err := s.store.Delete(c.UserContext(), c.Params("id")); err != nil {
		return s.fail(c, "deleting collection", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(c.UserContext(), s.config.RequestTimeout)
	}
	return context.WithCancel(c.UserContext())
}

// fail maps err onto a status code and writes the error body.
func (s *Server) fail(c *fiber.Ctx, op string, err error) error {
	status := statusFor(err)
	switch {
	case status >= fiber.StatusInternalServerError:
		s.logger.Error(op+" failed", "error", err, "status", status)
	case status == fiber.StatusTooManyRequests:
		s.logger.Warn(op+" rate limited", "error", err)
	default:
		s.logger.Debug(op+" rejected", "error", err, "status", status)
	}
	if status == fiber.StatusTooManyRequests {
		if d, ok := domain.RetryAfter(err); ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, vectorstore.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, domain.ErrDimensionMismatch):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}
