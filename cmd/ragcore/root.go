package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ragcore/internal/config"
	"ragcore/internal/logger"
)

const rootLongDesc string = `ragcore splits documents into chunks, embeds them and retrieves the chunks
most relevant to a question.

  ragcore chunk notes.txt                 Print the chunks of a document
  ragcore query notes.txt "question"      Print the best matching chunks
  ragcore tui docs/*.md                   Search documents interactively
  ragcore serve                           Run the HTTP API`

const rootShortDesc string = "ragcore - retrieval for grounded generation"

// globals carries the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "ragcore",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/ragcore/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&g.debug, "debug", "d", false, "Enable debug logging")

	cmd.AddCommand(
		newChunkCmd(g),
		newQueryCmd(g),
		newTUICmd(g),
		newServeCmd(g),
	)

	return cmd
}

func (g *globals) loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if g.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(g.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if g.debug {
		cfg.Log.Debug = true
	}
	return cfg, nil
}

// newLogger writes records to w in the configured format and, when a log
// file is configured, JSON records to that file as well. The returned closer
// releases the file.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, func() error, error) {
	format, err := logger.ParseFormat(cfg.Format)
	if err != nil {
		return nil, nil, err
	}
	console := logger.New(
		logger.WithWriter(w),
		logger.WithDebug(cfg.Debug),
		logger.WithFormat(format),
		logger.WithSource(cfg.Source),
	)
	if cfg.File == "" {
		return console, func() error { return nil }, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.WithWriter(f),
		logger.WithDebug(cfg.Debug),
		logger.WithFormat(logger.FormatJSON),
		logger.WithSource(cfg.Source),
	)
	return logger.Multi(console, file), f.Close, nil
}
