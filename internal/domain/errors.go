package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput is returned for blank source text, blank queries,
	// negative k and zero-length vectors.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingUnavailable is returned when the embedding provider failed
	// or answered with malformed, missing or short output.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrRateLimited is returned when the embedding provider signalled quota
	// or rate-limit exhaustion.
	ErrRateLimited = errors.New("embedding provider rate limited")

	// ErrDimensionMismatch is returned when vectors of differing length meet.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// ProviderError describes a failed call to an embedding provider.
// Kind is ErrRateLimited or ErrEmbeddingUnavailable.
type ProviderError struct {
	Kind       error
	Provider   string
	StatusCode int
	RetryAfter time.Duration
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Kind.Error()
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsRetryable reports whether a caller may retry the operation that failed
// with err: rate limits and transient provider failures qualify.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Transient
}

// RetryAfter returns the delay the provider asked for, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.RetryAfter > 0 {
		return pe.RetryAfter, true
	}
	return 0, false
}
