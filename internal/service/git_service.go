package service

import (
	"context"
	"strings"

	"github.com/nsvirk/gitcoderapi/internal/apperror"
	"github.com/nsvirk/gitcoderapi/internal/gitapi"
	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/nsvirk/gitcoderapi/internal/repository"
	"golang.org/x/sync/errgroup"
)

const auditListLimit = 50

// GitService derives status, reads history and manages pull requests
type GitService struct {
	upstream
	audits *repository.CommitAuditRepository
}

// NewGitService creates a new service for the git API; audits may be nil
func NewGitService(github *gitapi.Factory, audits *repository.CommitAuditRepository) *GitService {
	return &GitService{upstream: upstream{github: github}, audits: audits}
}

// Status compares branch with the default branch; an empty branch means the default one
func (s *GitService) Status(ctx context.Context, session *models.Session, ref RepoRef, branch string) (*models.RepoStatus, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	client := s.client(session)

	var (
		repo    *models.Repository
		commits []models.Commit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		repo, err = client.GetRepository(gctx, ref.Owner, ref.Repo)
		return err
	})
	if branch != "" {
		g.Go(func() error {
			var err error
			commits, err = client.ListCommits(gctx, ref.Owner, ref.Repo, branch, "", 1)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, upstreamError("Failed to get status", err)
	}

	status := &models.RepoStatus{
		CurrentBranch: branch,
		DefaultBranch: repo.DefaultBranch,
	}
	if status.CurrentBranch == "" {
		status.CurrentBranch = repo.DefaultBranch
	}

	g, gctx = errgroup.WithContext(ctx)
	if commits == nil {
		g.Go(func() error {
			var err error
			commits, err = client.ListCommits(gctx, ref.Owner, ref.Repo, status.CurrentBranch, "", 1)
			return err
		})
	}
	if status.CurrentBranch != status.DefaultBranch {
		g.Go(func() error {
			cmp, err := client.Compare(gctx, ref.Owner, ref.Repo, status.DefaultBranch, status.CurrentBranch)
			if err != nil {
				return err
			}
			status.Ahead = cmp.AheadBy
			status.Behind = cmp.BehindBy
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, upstreamError("Failed to get status", err)
	}

	status.HasChanges = status.Ahead > 0 || status.Behind > 0
	if len(commits) > 0 {
		status.LastCommit = &commits[0]
	}
	return status, nil
}

// History lists the commits of a branch, optionally restricted to one path
func (s *GitService) History(ctx context.Context, session *models.Session, ref RepoRef, branch, path string) ([]models.Commit, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	commits, err := s.client(session).ListCommits(ctx, ref.Owner, ref.Repo, branch, path, 0)
	if err != nil {
		return nil, upstreamError("Failed to get commit history", err)
	}
	return commits, nil
}

// CreatePullRequest opens a pull request from head into base
func (s *GitService) CreatePullRequest(ctx context.Context, session *models.Session, ref RepoRef, pr models.PullRequestRef) (*models.PullRequest, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(pr.Title) == "" || strings.TrimSpace(pr.Head) == "" || strings.TrimSpace(pr.Base) == "" {
		return nil, apperror.Validation("Title, head, and base are required")
	}
	created, err := s.client(session).CreatePullRequest(ctx, ref.Owner, ref.Repo, pr)
	if err != nil {
		return nil, upstreamError("Failed to create pull request", err)
	}
	return created, nil
}

// ListPullRequests lists pull requests in state, open by default
func (s *GitService) ListPullRequests(ctx context.Context, session *models.Session, ref RepoRef, state string) ([]models.PullRequest, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	switch state {
	case "", "open", "closed", "all":
	default:
		return nil, apperror.Validation("Invalid state %q: must be open, closed or all", state)
	}
	pulls, err := s.client(session).ListPullRequests(ctx, ref.Owner, ref.Repo, state)
	if err != nil {
		return nil, upstreamError("Failed to get pull requests", err)
	}
	return pulls, nil
}

// AuditEnabled reports whether commit batches are recorded
func (s *GitService) AuditEnabled() bool {
	return s.audits != nil
}

// Audits lists the latest commit batches of the session user for one repository
func (s *GitService) Audits(ctx context.Context, session *models.Session, ref RepoRef) ([]models.CommitAuditModel, error) {
	if err := ref.validate(); err != nil {
		return nil, err
	}
	if s.audits == nil {
		return []models.CommitAuditModel{}, nil
	}
	audits, err := s.audits.ListRecent(ctx, session.User.Login, ref.Owner, ref.Repo, auditListLimit)
	if err != nil {
		return nil, apperror.Internal("Failed to list commit audits", err)
	}
	return audits, nil
}
