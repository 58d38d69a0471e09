// Package api provides the HTTP API for building collections from documents
// and searching them.
package api

import (
	"time"

	"ragcore/internal/retry"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// BodyLimit caps request bodies in bytes; 0 keeps fiber's default.
	BodyLimit int

	// RequestTimeout bounds the embedding work of a single request; 0 means
	// no limit beyond the client's own.
	RequestTimeout time.Duration

	// Retry is applied to embedding calls that fail with a rate limit or a
	// transient provider error.
	Retry retry.Policy
}
