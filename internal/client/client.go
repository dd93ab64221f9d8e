// Package client is the Go client for the Git Coder API.
// It holds only the opaque session id; the upstream access token never leaves the login call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nsvirk/gitcoderapi/internal/models"
)

// headerSessionID matches the header the API reads the session id from
const headerSessionID = "X-Session-Id"

// Error is a failed API call decoded from the error envelope
type Error struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// Client calls the Git Coder API on behalf of one browser-equivalent session
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	sessionID string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionID resumes a session persisted by the caller
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// New creates a new API client for the server at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the held session id, empty when logged out
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *Client) setSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// Login exchanges an access token for a session and keeps its id
func (c *Client) Login(ctx context.Context, token string) (*models.UserProfile, error) {
	var resp struct {
		SessionID string             `json:"sessionId"`
		User      models.UserProfile `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, map[string]string{"token": token}, &resp); err != nil {
		return nil, err
	}
	c.setSessionID(resp.SessionID)
	return &resp.User, nil
}

// Validate checks the held session and returns its user
func (c *Client) Validate(ctx context.Context) (*models.UserProfile, error) {
	var resp struct {
		User models.UserProfile `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/validate", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Logout destroys the held session. The id is dropped even if the call fails.
func (c *Client) Logout(ctx context.Context) (bool, error) {
	id := c.SessionID()
	c.setSessionID("")

	var resp struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, map[string]string{"sessionId": id}, &resp); err != nil {
		return false, err
	}
	return resp.Deleted, nil
}

// ListRepos returns the public, private and combined repository views
func (c *Client) ListRepos(ctx context.Context) (*models.RepositoryViews, error) {
	var resp models.RepositoryViews
	if err := c.do(ctx, http.MethodGet, "/repos", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListReposOfType returns one repository partition: all, public or private
func (c *Client) ListReposOfType(ctx context.Context, visibility string) ([]models.Repository, error) {
	var resp struct {
		Repos []models.Repository `json:"repos"`
	}
	if err := c.do(ctx, http.MethodGet, "/repos", url.Values{"type": {visibility}}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Repos, nil
}

// CreateRepo creates a repository for the session user
func (c *Client) CreateRepo(ctx context.Context, name, description string, private bool) (*models.Repository, error) {
	var resp struct {
		Repo models.Repository `json:"repo"`
	}
	body := map[string]interface{}{"name": name, "description": description, "isPrivate": private}
	if err := c.do(ctx, http.MethodPost, "/repos", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Repo, nil
}

// ListBranches lists the branches of a repository
func (c *Client) ListBranches(ctx context.Context, owner, repo string) ([]models.Branch, error) {
	var resp struct {
		Branches []models.Branch `json:"branches"`
	}
	if err := c.do(ctx, http.MethodGet, "/branches", repoQuery(owner, repo), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Branches, nil
}

// CreateBranch creates branch from source, or from the default branch when source is empty
func (c *Client) CreateBranch(ctx context.Context, owner, repo, branch, source string) (*models.Ref, error) {
	var resp struct {
		Branch models.Ref `json:"branch"`
	}
	body := map[string]string{"owner": owner, "repo": repo, "branch": branch, "sourceBranch": source}
	if err := c.do(ctx, http.MethodPost, "/branches", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Branch, nil
}

// SwitchBranch checks that branch exists and returns it
func (c *Client) SwitchBranch(ctx context.Context, owner, repo, branch string) (*models.Branch, error) {
	var resp struct {
		Branch models.Branch `json:"branch"`
	}
	body := map[string]string{"owner": owner, "repo": repo, "branch": branch}
	if err := c.do(ctx, http.MethodPost, "/branches/switch", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Branch, nil
}

// ListContents lists a directory, the root when path is empty
func (c *Client) ListContents(ctx context.Context, owner, repo, path, branch string) ([]models.ContentEntry, error) {
	q := repoQuery(owner, repo)
	setIf(q, "path", path)
	setIf(q, "branch", branch)

	var resp struct {
		Contents []models.ContentEntry `json:"contents"`
	}
	if err := c.do(ctx, http.MethodGet, "/files/contents", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Contents, nil
}

// ReadFile reads a file with its decoded text
func (c *Client) ReadFile(ctx context.Context, owner, repo, path, branch string) (*models.FileContent, error) {
	q := repoQuery(owner, repo)
	q.Set("path", path)
	setIf(q, "branch", branch)

	var resp struct {
		File models.FileContent `json:"file"`
	}
	if err := c.do(ctx, http.MethodGet, "/files/file", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.File, nil
}

// FileWrite is one single-file mutation
type FileWrite struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Message string `json:"message"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// SaveFile overwrites an existing file; w.SHA must be the sha last read
func (c *Client) SaveFile(ctx context.Context, w FileWrite) (*models.ContentWriteResult, error) {
	return c.writeFile(ctx, http.MethodPut, w)
}

// CreateFile creates a new file
func (c *Client) CreateFile(ctx context.Context, w FileWrite) (*models.ContentWriteResult, error) {
	return c.writeFile(ctx, http.MethodPost, w)
}

// DeleteFile deletes a file; w.SHA must be the sha last read
func (c *Client) DeleteFile(ctx context.Context, w FileWrite) (*models.ContentWriteResult, error) {
	return c.writeFile(ctx, http.MethodDelete, w)
}

func (c *Client) writeFile(ctx context.Context, method string, w FileWrite) (*models.ContentWriteResult, error) {
	var resp struct {
		Result models.ContentWriteResult `json:"result"`
	}
	if err := c.do(ctx, method, "/files/file", nil, w, &resp); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// Search searches code in one repository
func (c *Client) Search(ctx context.Context, owner, repo, query string) (*models.SearchResult, error) {
	q := repoQuery(owner, repo)
	q.Set("query", query)

	var resp struct {
		TotalCount int                 `json:"totalCount"`
		Results    []models.SearchItem `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/files/search", q, nil, &resp); err != nil {
		return nil, err
	}
	return &models.SearchResult{TotalCount: resp.TotalCount, Items: resp.Results}, nil
}

// Commit applies a batch of file operations.
// A batch stopped part way is not an error: the result carries Success false and the failure.
func (c *Client) Commit(ctx context.Context, req models.CommitRequest) (*models.CommitResult, error) {
	var resp models.CommitResult
	if err := c.do(ctx, http.MethodPost, "/git/commit", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History lists commits of branch, optionally restricted to path
func (c *Client) History(ctx context.Context, owner, repo, branch, path string) ([]models.Commit, error) {
	q := repoQuery(owner, repo)
	setIf(q, "branch", branch)
	setIf(q, "path", path)

	var resp struct {
		History []models.Commit `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/git/history", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// Status compares branch with the default branch
func (c *Client) Status(ctx context.Context, owner, repo, branch string) (*models.RepoStatus, error) {
	q := repoQuery(owner, repo)
	setIf(q, "branch", branch)

	var resp struct {
		Status models.RepoStatus `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/git/status", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Status, nil
}

// CreatePullRequest opens a pull request
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, pr models.PullRequestRef) (*models.PullRequest, error) {
	body := map[string]string{
		"owner": owner,
		"repo":  repo,
		"title": pr.Title,
		"body":  pr.Body,
		"head":  pr.Head,
		"base":  pr.Base,
	}
	var resp struct {
		PullRequest models.PullRequest `json:"pullRequest"`
	}
	if err := c.do(ctx, http.MethodPost, "/git/pull-request", nil, body, &resp); err != nil {
		return nil, err
	}
	return &resp.PullRequest, nil
}

// ListPullRequests lists pull requests by state: open, closed or all
func (c *Client) ListPullRequests(ctx context.Context, owner, repo, state string) ([]models.PullRequest, error) {
	q := repoQuery(owner, repo)
	setIf(q, "state", state)

	var resp struct {
		PullRequests []models.PullRequest `json:"pullRequests"`
	}
	if err := c.do(ctx, http.MethodGet, "/git/pull-requests", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.PullRequests, nil
}

// Audits lists the caller's recent commit batches; enabled is false when the server keeps no audit log
func (c *Client) Audits(ctx context.Context, owner, repo string) (enabled bool, audits []models.CommitAuditModel, err error) {
	var resp struct {
		Enabled bool                      `json:"enabled"`
		Audits  []models.CommitAuditModel `json:"audits"`
	}
	if err := c.do(ctx, http.MethodGet, "/git/audit", repoQuery(owner, repo), nil, &resp); err != nil {
		return false, nil, err
	}
	return resp.Enabled, resp.Audits, nil
}

func repoQuery(owner, repo string) url.Values {
	return url.Values{"owner": {owner}, "repo": {repo}}
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

// do sends one request under /api and decodes the envelope into out
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + "/api" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := c.SessionID(); id != "" {
		req.Header.Set(headerSessionID, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.setSessionID("")
		}
		apiErr := &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var envelope struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
			apiErr.Message = envelope.Error
			apiErr.Details = envelope.Details
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
