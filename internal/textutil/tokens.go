// Package textutil holds the word tokenizer and stopword list shared by the
// hashing embedder, the summarizer and the terminal UI.
package textutil

import (
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// Words returns the lowercased words of text, stopwords included.
func Words(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// Terms returns the lowercased words of text with stopwords removed.
func Terms(text string) []string {
	words := Words(text)
	out := words[:0]
	for _, w := range words {
		if !IsStopword(w) {
			out = append(out, w)
		}
	}
	return out
}

// IsStopword reports whether w (lowercase) is a stopword.
func IsStopword(w string) bool {
	_, ok := stopwords[w]
	return ok
}

// WordSet returns the distinct lowercased words of text.
func WordSet(text string) map[string]struct{} {
	words := Words(text)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Overlap counts the distinct words of text that appear in set.
func Overlap(set map[string]struct{}, text string) int {
	n := 0
	for w := range WordSet(text) {
		if _, ok := set[w]; ok {
			n++
		}
	}
	return n
}
