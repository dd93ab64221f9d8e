package service

import (
	"context"
	"strings"

	"github.com/nsvirk/gitcoderapi/internal/apperror"
	"github.com/nsvirk/gitcoderapi/internal/gitapi"
	"github.com/nsvirk/gitcoderapi/internal/models"
)

// BranchService lists, creates and checks branches
type BranchService struct {
	upstream
}

// NewBranchService creates a new service for the branches API
func NewBranchService(github *gitapi.Factory) *BranchService {
	return &BranchService{upstream{github: github}}
}

// List returns the branches of a repository
func (s *BranchService) List(ctx context.Context, session *models.Session, ref RepoRef) ([]models.Branch, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	branches, err := s.client(session).ListBranches(ctx, ref.Owner, ref.Repo)
	if err != nil {
		return nil, upstreamError("Failed to fetch branches", err)
	}
	return branches, nil
}

// Create creates branch from source, or from the repository default branch when source is empty
func (s *BranchService) Create(ctx context.Context, session *models.Session, ref RepoRef, branch, source string) (*models.Ref, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(branch) == "" {
		return nil, apperror.Validation("Branch name is required")
	}

	client := s.client(session)
	if source == "" {
		repo, err := client.GetRepository(ctx, ref.Owner, ref.Repo)
		if err != nil {
			return nil, upstreamError("Failed to resolve default branch", err)
		}
		source = repo.DefaultBranch
	}

	created, err := client.CreateBranch(ctx, ref.Owner, ref.Repo, branch, source)
	if err != nil {
		return nil, upstreamError("Failed to create branch", err)
	}
	return created, nil
}

// Switch checks that branch exists and returns it
func (s *BranchService) Switch(ctx context.Context, session *models.Session, ref RepoRef, branch string) (*models.Branch, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(branch) == "" {
		return nil, apperror.Validation("Branch name is required")
	}
	b, err := s.client(session).GetBranch(ctx, ref.Owner, ref.Repo, branch)
	if err != nil {
		return nil, upstreamError("Failed to switch branch", err)
	}
	return b, nil
}
