// Package repository contains the storage layer for the Git Coder API
package repository

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/rotisserie/eris"
)

// ErrSessionNotFound is returned for unknown, deleted and expired sessions alike
var ErrSessionNotFound = errors.New("session not found")

const sessionIDBytes = 32

// SessionStore maps opaque session ids to upstream access tokens
type SessionStore interface {
	// Create stores a new session and returns it with a freshly generated id
	Create(ctx context.Context, token string, user models.UserProfile) (*models.Session, error)
	// Get returns a copy of a live session and refreshes its last access time
	Get(ctx context.Context, id string) (*models.Session, error)
	// Delete removes a session and reports whether it existed
	Delete(ctx context.Context, id string) (bool, error)
	// EvictExpired removes every idle session and returns how many were removed
	EvictExpired(ctx context.Context) (int, error)
	// Count returns the number of stored sessions
	Count(ctx context.Context) (int, error)
}

// NewSessionID returns 32 random bytes encoded as unpadded base64url
func NewSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", eris.Wrap(err, "failed to generate session id")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MemorySessionStore keeps sessions in process memory
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	maxAge   time.Duration
	clock    Clock
}

// NewMemorySessionStore creates an in-memory store whose sessions expire after maxAge of inactivity
func NewMemorySessionStore(maxAge time.Duration, clock Clock) *MemorySessionStore {
	if clock == nil {
		clock = RealClock{}
	}
	return &MemorySessionStore{
		sessions: make(map[string]*models.Session),
		maxAge:   maxAge,
		clock:    clock,
	}
}

func (s *MemorySessionStore) Create(ctx context.Context, token string, user models.UserProfile) (*models.Session, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	for {
		var err error
		if id, err = NewSessionID(); err != nil {
			return nil, err
		}
		if _, taken := s.sessions[id]; !taken {
			break
		}
	}

	session := &models.Session{
		ID:             id,
		User:           user,
		AccessToken:    token,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	s.sessions[id] = session

	copied := *session
	return &copied, nil
}

func (s *MemorySessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired(now, s.maxAge) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	if now.After(session.LastAccessedAt) {
		session.LastAccessedAt = now
	}

	copied := *session
	return &copied, nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok, nil
}

func (s *MemorySessionStore) EvictExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.IsExpired(now, s.maxAge) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemorySessionStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}
