package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"ragcore/internal/domain"
	"ragcore/internal/loader"
	"ragcore/internal/retry"
	"ragcore/internal/service"
)

const queryLongDesc string = `Build a collection from documents and print the chunks most relevant to a
question, best first.

Use --context to print only the newline-joined chunk texts, ready to paste
into a prompt.

Example:
  ragcore query notes.txt "what do cats eat"
  ragcore query "docs/*.md" "how is retry configured" -k 3 --context`

type queryCommander struct {
	*globals
	topK        int
	topSet      bool
	contextOnly bool
}

func newQueryCmd(g *globals) *cobra.Command {
	cmder := &queryCommander{globals: g}

	cmd := &cobra.Command{
		Use:   "query <file> <question>",
		Short: "Print the chunks most relevant to a question",
		Long:  queryLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			cmder.topSet = cmd.Flags().Changed("top")
			return cmder.run(ctx, cmd.OutOrStdout(), args[0], args[1])
		},
	}

	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 0, "Number of chunks to return (default from config)")
	cmd.Flags().BoolVar(&cmder.contextOnly, "context", false, "Print only the joined chunk texts")

	return cmd
}

func (c *queryCommander) run(ctx context.Context, out io.Writer, path, question string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	log, closeLog, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	text, _, err := loader.LoadAll([]string{path})
	if err != nil {
		return err
	}
	pipeline, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	policy := retryPolicy(cfg.Retry)

	var coll *domain.Collection
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		coll, err = pipeline.BuildCollection(ctx, text)
		return err
	})
	if err != nil {
		return err
	}

	k := pipeline.DefaultTopK()
	if c.topSet {
		k = c.topK
	}
	var chunks []domain.Chunk
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		chunks, err = pipeline.Retrieve(ctx, question, coll, k)
		return err
	})
	if err != nil {
		return err
	}

	if c.contextOnly {
		fmt.Fprintln(out, service.FormatContext(chunks))
		return nil
	}
	if len(chunks) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "\n%s %q\n\n", headerStyle.Render("Results for:"), question)
	for i, ch := range chunks {
		fmt.Fprintf(out, "%s %s\n%s\n\n",
			rankStyle.Render(fmt.Sprintf("[%d]", i+1)),
			dimStyle.Render(fmt.Sprintf("chunk #%d", ch.Index+1)),
			textStyle.Render(ch.Text),
		)
	}
	return nil
}
