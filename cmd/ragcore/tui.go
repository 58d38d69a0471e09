package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragcore/internal/domain"
	"ragcore/internal/loader"
	"ragcore/internal/retry"
	"ragcore/internal/summarizer"
	"ragcore/internal/tui"
)

const tuiLongDesc string = `Load documents, build a collection and search it interactively.

Type a question and press Enter; use the arrow keys to page through results
and Ctrl+C to quit. Logs go to the configured log file only.

Example:
  ragcore tui notes.txt
  ragcore tui "docs/*.md" report.pdf`

type tuiCommander struct {
	*globals
}

func newTUICmd(g *globals) *cobra.Command {
	cmder := &tuiCommander{globals: g}

	return &cobra.Command{
		Use:   "tui <file...>",
		Short: "Search documents interactively",
		Long:  tuiLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), args)
		},
	}
}

func (c *tuiCommander) run(ctx context.Context, paths []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	// the terminal belongs to the UI
	log, closeLog, err := newLogger(cfg.Log, io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	text, files, err := loader.LoadAll(paths)
	if err != nil {
		return err
	}
	pipeline, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	policy := retryPolicy(cfg.Retry)

	fmt.Fprintf(os.Stderr, "Embedding %d document(s)...\n", len(files))
	var coll *domain.Collection
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		coll, err = pipeline.BuildCollection(ctx, text)
		return err
	})
	if err != nil {
		return err
	}
	log.Info("collection built", "files", files, "chunks", coll.Len())

	searcher := tui.SearchFunc(func(ctx context.Context, query string) ([]domain.Chunk, error) {
		var chunks []domain.Chunk
		err := retry.Do(ctx, policy, func(ctx context.Context) error {
			var err error
			chunks, err = pipeline.Retrieve(ctx, query, coll, pipeline.DefaultTopK())
			return err
		})
		return chunks, err
	})

	sum := summarizer.NewFrequencySummarizer(cfg.Summarizer.MaxSentences).Summarize(text)
	m := tui.New(ctx, searcher, title(files), sum)
	_, err = tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run()
	return err
}

func title(files []string) string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	return "ragcore: " + strings.Join(names, ", ")
}
