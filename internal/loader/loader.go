// Package loader reads source documents into plain text.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedFormat is returned for files that are not .txt, .md or .pdf.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrNoDocuments is returned when no path resolves to a supported file.
	ErrNoDocuments = errors.New("no supported documents found")
)

// Supported reports whether name has an extension the loader can read.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".pdf":
		return true
	}
	return false
}

// Load reads the document at path.
func Load(path string) (string, error) {
	if !Supported(path) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Parse(path, data)
}

// Parse extracts text from data, choosing the format by name's extension.
func Parse(name string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return string(data), nil
	case ".pdf":
		return pdfText(data)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	b, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("reading pdf buffer: %w", err)
	}
	return buf.String(), nil
}

// LoadAll expands each path as a glob, loads every supported match and joins
// the documents with blank lines. Unsupported matches are skipped. It returns
// the text and the files it read.
func LoadAll(paths []string) (string, []string, error) {
	var (
		texts []string
		files []string
	)
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return "", nil, fmt.Errorf("expanding %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if !Supported(m) {
				continue
			}
			text, err := Load(m)
			if err != nil {
				return "", nil, err
			}
			texts = append(texts, strings.TrimSpace(text))
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return "", nil, ErrNoDocuments
	}
	return strings.Join(texts, "\n\n"), files, nil
}
