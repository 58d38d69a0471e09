package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"ragcore/internal/service"
	"ragcore/internal/summarizer"
	"ragcore/internal/vectorstore"
)

// Server is the API server for building and searching collections.
type Server struct {
	config     Config
	pipeline   *service.Pipeline
	store      vectorstore.Storage
	summarizer *summarizer.FrequencySummarizer
	logger     *slog.Logger
	app        *fiber.App
}

// NewServer creates a new API server. The store is injected so the caller
// owns its lifetime.
func NewServer(config Config, pipeline *service.Pipeline, store vectorstore.Storage, sum *summarizer.FrequencySummarizer, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.BodyLimit,
	})

	s := &Server{
		config:     config,
		pipeline:   pipeline,
		store:      store,
		summarizer: sum,
		logger:     logger,
		app:        app,
	}

	app.Get("/health", s.handleHealth)
	app.Post("/v1/collections", s.handleCreateCollection)
	app.Post("/v1/collections/upload", s.handleUpload)
	app.Get("/v1/collections/:id/search", s.handleSearch)
	app.Delete("/v1/collections/:id", s.handleDeleteCollection)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
