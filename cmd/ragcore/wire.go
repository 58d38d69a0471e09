package main

import (
	"fmt"
	"log/slog"
	"time"

	"ragcore/internal/config"
	"ragcore/internal/embedding"
	"ragcore/internal/embedding/hashing"
	"ragcore/internal/embedding/ollama"
	"ragcore/internal/embedding/openai"
	"ragcore/internal/retry"
	"ragcore/internal/service"
	"ragcore/internal/vectorstore"
	"ragcore/internal/vectorstore/memory"
	"ragcore/internal/vectorstore/qdrant"
)

func buildProvider(cfg config.EmbedderConfig) (embedding.Provider, error) {
	switch cfg.Type {
	case "hashing", "":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		return hashing.NewEmbedder(dim), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	case "ollama":
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("ollama embedder config missing")
		}
		return ollama.NewEmbedder(ollama.Config{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
			Timeout: time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func buildStorage(cfg config.VectorStoreConfig, logger *slog.Logger) (vectorstore.Storage, error) {
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(memory.Config{
			TTL:             cfg.TTL(),
			CleanupInterval: cfg.CleanupInterval(),
			Logger:          logger,
		}), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		st, err := qdrant.NewStorage(qdrant.Config{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			Collection:      cfg.Qdrant.Collection,
			TTL:             cfg.TTL(),
			CleanupInterval: cfg.CleanupInterval(),
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func buildPipeline(cfg *config.AppConfig, logger *slog.Logger) (*service.Pipeline, error) {
	provider, err := buildProvider(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	logger.Debug("embedding provider ready", "provider", provider.Name())
	return service.NewPipeline(provider, pipelineConfig(cfg.Retrieval), logger), nil
}

func pipelineConfig(cfg config.RetrievalConfig) service.Config {
	return service.Config{
		MaxChunkSize:   cfg.MaxChunkSize,
		BatchSize:      cfg.BatchSize,
		MaxConcurrency: cfg.MaxConcurrency,
		TopK:           cfg.TopK,
	}
}

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.MaxDelayMs) * time.Millisecond,
	}
}
