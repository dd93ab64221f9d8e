package gitapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nsvirk/gitcoderapi/internal/models"
)

// ListBranches lists the branches of a repository
func (c *Client) ListBranches(ctx context.Context, owner, repo string) ([]models.Branch, error) {
	query := url.Values{"per_page": []string{"100"}}
	branches := []models.Branch{}
	if err := c.do(ctx, "get branches", http.MethodGet, repoPath(owner, repo)+"/branches", query, nil, &branches); err != nil {
		return nil, err
	}
	return branches, nil
}

// GetBranch returns one branch
func (c *Client) GetBranch(ctx context.Context, owner, repo, branch string) (*models.Branch, error) {
	var b models.Branch
	if err := c.do(ctx, "get branch", http.MethodGet, repoPath(owner, repo)+"/branches/"+escapePath(branch), nil, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBranchRef returns the heads ref of a branch
func (c *Client) GetBranchRef(ctx context.Context, owner, repo, branch string) (*models.Ref, error) {
	var ref models.Ref
	if err := c.do(ctx, "get ref", http.MethodGet, repoPath(owner, repo)+"/git/ref/heads/"+escapePath(branch), nil, nil, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// CreateBranch reads the source branch head and creates a new ref pointing at it
func (c *Client) CreateBranch(ctx context.Context, owner, repo, branch, sourceBranch string) (*models.Ref, error) {
	source, err := c.GetBranchRef(ctx, owner, repo, sourceBranch)
	if err != nil {
		return nil, err
	}

	body := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": source.Object.SHA,
	}
	var ref models.Ref
	if err := c.do(ctx, "create branch", http.MethodPost, repoPath(owner, repo)+"/git/refs", nil, body, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// ListCommits lists the history of a branch, optionally restricted to a path
func (c *Client) ListCommits(ctx context.Context, owner, repo, branch, path string, perPage int) ([]models.Commit, error) {
	if perPage <= 0 {
		perPage = commitsPageSize
	}
	query := url.Values{}
	if branch != "" {
		query.Set("sha", branch)
	}
	if path != "" {
		query.Set("path", path)
	}
	query.Set("per_page", strconv.Itoa(perPage))

	commits := []models.Commit{}
	if err := c.do(ctx, "get commit history", http.MethodGet, repoPath(owner, repo)+"/commits", query, nil, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

// Compare compares head against base
func (c *Client) Compare(ctx context.Context, owner, repo, base, head string) (*models.CompareResult, error) {
	var result models.CompareResult
	basehead := url.PathEscape(base) + "..." + url.PathEscape(head)
	if err := c.do(ctx, "compare commits", http.MethodGet, repoPath(owner, repo)+"/compare/"+basehead, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
