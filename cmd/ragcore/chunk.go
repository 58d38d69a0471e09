package main

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"ragcore/internal/chunker"
	"ragcore/internal/loader"
)

const chunkLongDesc string = `Split documents into sentence-aligned chunks and print them.

Sentences are packed greedily into chunks of at most --size characters. Text
without sentence punctuation is cut into fixed-width pieces.

Example:
  ragcore chunk notes.txt
  ragcore chunk report.pdf --size 200`

type chunkCommander struct {
	*globals
	size int
}

func newChunkCmd(g *globals) *cobra.Command {
	cmder := &chunkCommander{globals: g}

	cmd := &cobra.Command{
		Use:   "chunk <file...>",
		Short: "Print the chunks of a document",
		Long:  chunkLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.OutOrStdout(), args)
		},
	}

	cmd.Flags().IntVarP(&cmder.size, "size", "s", 0, "Maximum chunk size in characters (default from config)")

	return cmd
}

func (c *chunkCommander) run(out io.Writer, paths []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	size := cfg.Retrieval.MaxChunkSize
	if c.size > 0 {
		size = c.size
	}

	text, files, err := loader.LoadAll(paths)
	if err != nil {
		return err
	}
	log, closeLog, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	log.Debug("documents loaded", "files", files)

	chunks := chunker.Split(text, size)
	for i, ch := range chunks {
		fmt.Fprintf(out, "%s %s\n%s\n\n",
			rankStyle.Render(fmt.Sprintf("[%d]", i+1)),
			dimStyle.Render(fmt.Sprintf("%d chars", utf8.RuneCountInString(ch))),
			textStyle.Render(ch),
		)
	}
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d chunks", len(chunks))))
	return nil
}
