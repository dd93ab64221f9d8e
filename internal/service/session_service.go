// Package service contains the service layer for the Git Coder API
package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/nsvirk/gitcoderapi/internal/apperror"
	"github.com/nsvirk/gitcoderapi/internal/gitapi"
	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/nsvirk/gitcoderapi/internal/repository"
	"github.com/nsvirk/gitcoderapi/pkg/utils/zaplogger"
)

// SessionService exchanges access tokens for sessions and resolves them on every request
type SessionService struct {
	store  repository.SessionStore
	github *gitapi.Factory
}

// NewSessionService creates a new service for the session API
func NewSessionService(store repository.SessionStore, github *gitapi.Factory) *SessionService {
	return &SessionService{store: store, github: github}
}

// Login verifies the token upstream and opens a session for its owner
func (s *SessionService) Login(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, apperror.Validation("GitHub token is required")
	}

	user, err := s.github.ForToken(token).GetUser(ctx)
	if err != nil {
		if apiErr, ok := gitapi.AsAPIError(err); ok && apiErr.Kind == gitapi.KindUnauthorized {
			e := apperror.Upstream("Authentication failed", http.StatusUnauthorized, err)
			e.Details = apiErr.Message
			return nil, e
		}
		return nil, upstreamError("Authentication failed", err)
	}

	session, err := s.store.Create(ctx, token, *user)
	if err != nil {
		return nil, apperror.Internal("Failed to create session", err)
	}

	zaplogger.Info("session created", zaplogger.Fields{
		"session": models.ShortID(session.ID),
		"login":   user.Login,
	})
	return session, nil
}

// Resolve returns the live session for id, refreshing its last access time
func (s *SessionService) Resolve(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, apperror.SessionInvalid("Session ID is required")
	}
	session, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, apperror.SessionInvalid("Invalid or expired session")
	}
	if err != nil {
		return nil, apperror.Internal("Failed to read session", err)
	}
	return session, nil
}

// Logout destroys a session; an unknown id is not an error
func (s *SessionService) Logout(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, apperror.Validation("Session ID is required")
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, apperror.Internal("Failed to delete session", err)
	}
	zaplogger.Info("session deleted", zaplogger.Fields{
		"session": models.ShortID(id),
		"existed": deleted,
	})
	return deleted, nil
}

// EvictExpired removes idle sessions
func (s *SessionService) EvictExpired(ctx context.Context) (int, error) {
	return s.store.EvictExpired(ctx)
}

// Count returns the number of stored sessions
func (s *SessionService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}
