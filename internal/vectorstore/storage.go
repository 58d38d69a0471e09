// Package vectorstore keeps built collections between requests so a document
// is embedded once and searched many times.
package vectorstore

import (
	"context"
	"errors"
	"time"

	"ragcore/internal/domain"
)

// DefaultTTL is how long a session lives after it is saved.
const DefaultTTL = 24 * time.Hour

// DefaultCleanupInterval is how often expired sessions are purged.
const DefaultCleanupInterval = 10 * time.Minute

// ErrNotFound is returned for unknown and expired sessions.
var ErrNotFound = errors.New("session not found")

// Session is a saved collection addressed by ID.
type Session struct {
	ID         string
	Collection *domain.Collection
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session is past its lifetime at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Storage persists collections as sessions with a time-to-live.
type Storage interface {
	// Save stores c under a fresh session ID.
	Save(ctx context.Context, c *domain.Collection) (Session, error)
	// Load returns the session, or ErrNotFound if it is unknown or expired.
	Load(ctx context.Context, id string) (Session, error)
	// Delete removes the session. Deleting an unknown session returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	// Close stops background cleanup and releases connections.
	Close() error
}
