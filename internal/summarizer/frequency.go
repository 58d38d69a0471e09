// Package summarizer produces short extractive summaries of source text.
package summarizer

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"ragcore/internal/chunker"
	"ragcore/internal/textutil"
)

// DefaultMaxSentences is the summary length used when callers pass zero.
const DefaultMaxSentences = 5

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	maxSentences int
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer(maxSentences int) *FrequencySummarizer {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &FrequencySummarizer{maxSentences: maxSentences}
}

// Summarize returns the highest scoring sentences of text in their original
// order.
func (s *FrequencySummarizer) Summarize(text string) string {
	sentences := chunker.Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}

	terms := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		terms[i] = textutil.Terms(sent)
		for _, t := range terms[i] {
			freq[t]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		score := 0.0
		for _, t := range terms[i] {
			score += freq[t]
		}
		// normalize by sentence length to avoid bias toward long sentences
		if l := float64(len(textutil.Words(sent))); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	slices.SortStableFunc(scores, func(a, b pair) int { return cmp.Compare(b.score, a.score) })

	n := min(s.maxSentences, len(scores))
	selected := make([]int, n)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	slices.Sort(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " ")
}
