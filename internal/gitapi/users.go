package gitapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nsvirk/gitcoderapi/internal/models"
)

// Repository visibility filters accepted by ListRepositories
const (
	VisibilityAll     = "all"
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// CreateRepositoryOptions are the fields sent when creating a repository
type CreateRepositoryOptions struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Private     bool   `json:"private"`
	AutoInit    bool   `json:"auto_init"`
}

// GetUser returns the identity the token belongs to
func (c *Client) GetUser(ctx context.Context) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := c.do(ctx, "get user", http.MethodGet, "/user", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListRepositories lists the first page of repositories visible to the token
func (c *Client) ListRepositories(ctx context.Context, visibility string) ([]models.Repository, error) {
	if visibility == "" {
		visibility = VisibilityAll
	}
	query := url.Values{}
	query.Set("visibility", visibility)
	query.Set("sort", "updated")
	query.Set("direction", "desc")
	query.Set("per_page", strconv.Itoa(reposPageSize))

	repos := []models.Repository{}
	if err := c.do(ctx, "list repositories", http.MethodGet, "/user/repos", query, nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// GetRepository returns the repository metadata
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*models.Repository, error) {
	var r models.Repository
	if err := c.do(ctx, "get repository", http.MethodGet, repoPath(owner, repo), nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRepository creates a repository owned by the authenticated user
func (c *Client) CreateRepository(ctx context.Context, opts CreateRepositoryOptions) (*models.Repository, error) {
	var r models.Repository
	if err := c.do(ctx, "create repository", http.MethodPost, "/user/repos", nil, opts, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
