package service

import (
	"context"
	"strings"

	"github.com/nsvirk/gitcoderapi/internal/apperror"
	"github.com/nsvirk/gitcoderapi/internal/gitapi"
	"github.com/nsvirk/gitcoderapi/internal/models"
)

// RepoService lists and creates repositories of the session user
type RepoService struct {
	upstream
}

// NewRepoService creates a new service for the repository API
func NewRepoService(github *gitapi.Factory) *RepoService {
	return &RepoService{upstream{github: github}}
}

// ListAll returns the public, private and combined views from a single upstream call
func (s *RepoService) ListAll(ctx context.Context, session *models.Session) (*models.RepositoryViews, error) {
	repos, err := s.client(session).ListRepositories(ctx, gitapi.VisibilityAll)
	if err != nil {
		return nil, upstreamError("Failed to fetch repositories", err)
	}

	views := &models.RepositoryViews{
		Public:  []models.Repository{},
		Private: []models.Repository{},
		All:     repos,
	}
	for _, r := range repos {
		if r.Private {
			views.Private = append(views.Private, r)
		} else {
			views.Public = append(views.Public, r)
		}
	}
	return views, nil
}

// List returns the repositories of one visibility
func (s *RepoService) List(ctx context.Context, session *models.Session, visibility string) ([]models.Repository, error) {
	switch visibility {
	case gitapi.VisibilityAll, gitapi.VisibilityPublic, gitapi.VisibilityPrivate:
	default:
		return nil, apperror.Validation("Invalid type %q: must be all, public or private", visibility)
	}

	repos, err := s.client(session).ListRepositories(ctx, visibility)
	if err != nil {
		return nil, upstreamError("Failed to fetch repositories", err)
	}
	if visibility == gitapi.VisibilityAll {
		return repos, nil
	}

	// the upstream filter includes repositories shared with the user, filter on the flag itself
	filtered := make([]models.Repository, 0, len(repos))
	wantPrivate := visibility == gitapi.VisibilityPrivate
	for _, r := range repos {
		if r.Private == wantPrivate {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// CreateRepoInput holds the fields of a repository creation
type CreateRepoInput struct {
	Name        string
	Description string
	IsPrivate   bool
	// AutoInit defaults to true when nil
	AutoInit *bool
}

// Create creates a repository owned by the session user
func (s *RepoService) Create(ctx context.Context, session *models.Session, in CreateRepoInput) (*models.Repository, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.Validation("Repository name is required")
	}
	autoInit := true
	if in.AutoInit != nil {
		autoInit = *in.AutoInit
	}

	repo, err := s.client(session).CreateRepository(ctx, gitapi.CreateRepositoryOptions{
		Name:        name,
		Description: in.Description,
		Private:     in.IsPrivate,
		AutoInit:    autoInit,
	})
	if err != nil {
		return nil, upstreamError("Failed to create repository", err)
	}
	return repo, nil
}
