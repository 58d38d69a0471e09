package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format selects the handler that renders records.
type Format int

const (
	// FormatText is slog's logfmt-style text handler.
	FormatText Format = iota
	// FormatJSON is slog's JSON handler, for service logs and log files.
	FormatJSON
	// FormatPretty is the colorized charmbracelet/log handler for terminals.
	FormatPretty
)

// ParseFormat maps a config value ("text", "json" or "pretty") to a Format.
// The empty string is FormatText.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "pretty":
		return FormatPretty, nil
	}
	return FormatText, fmt.Errorf("unknown log format %q", s)
}

// Option configures a logger created with New.
type Option func(*config)

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithFormat picks the record format.
func WithFormat(f Format) Option {
	return func(c *config) { c.format = f }
}

// WithWriter sends records to every w. Defaults to os.Stdout.
func WithWriter(w ...io.Writer) Option {
	return func(c *config) { c.writers = w }
}

// WithSource adds the file:line of the logging call to each record.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}
