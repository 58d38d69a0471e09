// Package memory provides an in-process session store.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragcore/internal/domain"
	"ragcore/internal/vectorstore"
)

// Storage keeps sessions in a map guarded by a RWMutex. Expired sessions are
// hidden from Load immediately and purged by a janitor goroutine.
type Storage struct {
	mu       sync.RWMutex
	sessions map[string]vectorstore.Session

	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Config configures the in-memory store.
type Config struct {
	// TTL defaults to vectorstore.DefaultTTL.
	TTL time.Duration
	// CleanupInterval defaults to vectorstore.DefaultCleanupInterval. A
	// negative interval disables the janitor.
	CleanupInterval time.Duration
	Logger          *slog.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func NewStorage(cfg Config) *Storage {
	if cfg.TTL <= 0 {
		cfg.TTL = vectorstore.DefaultTTL
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = vectorstore.DefaultCleanupInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Storage{
		sessions: make(map[string]vectorstore.Session),
		ttl:      cfg.TTL,
		now:      cfg.Now,
		logger:   cfg.Logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go s.janitor(cfg.CleanupInterval)
	} else {
		close(s.done)
	}
	return s
}

func (s *Storage) Save(_ context.Context, c *domain.Collection) (vectorstore.Session, error) {
	if c.Len() == 0 {
		return vectorstore.Session{}, errors.New("cannot save an empty collection")
	}
	now := s.now()
	sess := vectorstore.Session{
		ID:         uuid.NewString(),
		Collection: c,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

func (s *Storage) Load(_ context.Context, id string) (vectorstore.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || sess.Expired(s.now()) {
		return vectorstore.Session{}, vectorstore.ErrNotFound
	}
	return sess, nil
}

func (s *Storage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return vectorstore.ErrNotFound
	}
	delete(s.sessions, id)
	if sess.Expired(s.now()) {
		return vectorstore.ErrNotFound
	}
	return nil
}

// Len returns the number of stored sessions, expired ones included until the
// janitor runs.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Purge removes expired sessions and returns how many it removed.
func (s *Storage) Purge() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Close stops the janitor. It is safe to call more than once.
func (s *Storage) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *Storage) janitor(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.Purge(); n > 0 {
				s.logger.Debug("expired sessions purged", "count", n)
			}
		}
	}
}

var _ vectorstore.Storage = (*Storage)(nil)
