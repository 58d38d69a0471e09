package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkSize is the chunk size, in characters, used when none is given.
const DefaultMaxChunkSize = 500

// A sentence runs up to and including a run of terminal markers, so "Wait..."
// and "Really?!" each end one sentence.
var sentenceRe = regexp.MustCompile(`[^.!?]*[.!?]+`)

// SentenceChunker packs whole sentences into chunks of bounded size.
type SentenceChunker struct {
	maxChunkSize int
}

func NewSentenceChunker(maxChunkSize int) *SentenceChunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	return &SentenceChunker{maxChunkSize: maxChunkSize}
}

// MaxChunkSize returns the configured chunk size in characters.
func (c *SentenceChunker) MaxChunkSize() int { return c.maxChunkSize }

// Chunk splits text into ordered, non-empty chunks.
func (c *SentenceChunker) Chunk(text string) []string {
	return Split(text, c.maxChunkSize)
}

// Split greedily packs the sentences of text into chunks of at most
// maxChunkSize characters, joined by single spaces. A sentence longer than
// maxChunkSize becomes a chunk of its own and is never cut. Text without any
// sentence marker is cut into fixed-width slices instead. The result is
// deterministic for a given input.
func Split(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	sentences, found := splitSentences(text)
	if !found {
		return fixedWidth(text, maxChunkSize)
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0
	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if bufLen > 0 && bufLen+1+n > maxChunkSize {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(s)
		bufLen += n
	}
	if bufLen > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

// Sentences returns the trimmed, non-empty sentences of text. Text after the
// last marker is returned as a final sentence; text with no marker at all is
// returned whole.
func Sentences(text string) []string {
	sentences, found := splitSentences(text)
	if !found {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}
	return sentences
}

func splitSentences(text string) ([]string, bool) {
	locs := sentenceRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(locs)+1)
	for _, loc := range locs {
		if s := strings.TrimSpace(text[loc[0]:loc[1]]); s != "" {
			out = append(out, s)
		}
	}
	// trailing text without a terminal marker
	if rest := strings.TrimSpace(text[locs[len(locs)-1][1]:]); rest != "" {
		out = append(out, rest)
	}
	return out, true
}

// fixedWidth slices text into runs of exactly size characters, trimmed.
// Word boundaries are not respected.
func fixedWidth(text string, size int) []string {
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			chunks = append(chunks, s)
		}
	}
	return chunks
}
