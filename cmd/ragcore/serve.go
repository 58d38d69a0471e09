package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ragcore/internal/api"
	"ragcore/internal/summarizer"
)

const serveLongDesc string = `Run the HTTP API.

Collections are built from posted text or uploaded documents and kept as
sessions in the configured vector store until their time-to-live runs out.

Example:
  ragcore serve
  ragcore serve --listen :9000`

type serveCommander struct {
	*globals
	listen string
}

func newServeCmd(g *globals) *cobra.Command {
	cmder := &serveCommander{globals: g}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx)
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address for API server to listen on (default from config)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if c.listen != "" {
		cfg.Server.Listen = c.listen
	}
	log, closeLog, err := newLogger(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	defer closeLog()

	pipeline, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	store, err := buildStorage(cfg.VectorStore, log)
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info("session store ready", "type", cfg.VectorStore.Type, "ttl", cfg.VectorStore.TTL())

	server := api.NewServer(api.Config{
		ListenAddr:     cfg.Server.Listen,
		BodyLimit:      cfg.Server.BodyLimitMB << 20,
		RequestTimeout: time.Duration(cfg.Server.TimeoutSecs) * time.Second,
		Retry:          retryPolicy(cfg.Retry),
	}, pipeline, store, summarizer.NewFrequencySummarizer(cfg.Summarizer.MaxSentences), log)

	errc := make(chan error, 1)
	go func() { errc <- server.Run() }()

	select {
	case err := <-errc:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}
	log.Info("shutting down API server")
	if err := server.Shutdown(); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
