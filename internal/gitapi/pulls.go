package gitapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nsvirk/gitcoderapi/internal/models"
)

// CreatePullRequest opens a pull request
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, pr models.PullRequestRef) (*models.PullRequest, error) {
	var created models.PullRequest
	if err := c.do(ctx, "create pull request", http.MethodPost, repoPath(owner, repo)+"/pulls", nil, pr, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListPullRequests lists pull requests in the given state
func (c *Client) ListPullRequests(ctx context.Context, owner, repo, state string) ([]models.PullRequest, error) {
	if state == "" {
		state = "open"
	}
	query := url.Values{}
	query.Set("state", state)
	query.Set("per_page", strconv.Itoa(pullsPageSize))

	pulls := []models.PullRequest{}
	if err := c.do(ctx, "get pull requests", http.MethodGet, repoPath(owner, repo)+"/pulls", query, nil, &pulls); err != nil {
		return nil, err
	}
	return pulls, nil
}
