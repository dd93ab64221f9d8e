// Package gitapi is the client for the hosting provider's REST API
package gitapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL   = "https://api.github.com"
	DefaultUserAgent = "Git-Coder/2.0.0"
	DefaultTimeout   = 30 * time.Second

	reposPageSize   = 100
	commitsPageSize = 50
	pullsPageSize   = 20
	searchPageSize  = 30
)

// Options configures the clients created by a Factory
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// Transport is the base round tripper under the token transport
	Transport http.RoundTripper
}

// Factory builds per-session clients sharing the same options
type Factory struct {
	opts Options
}

// NewFactory creates a new client factory, filling in defaults
func NewFactory(opts Options) *Factory {
	return &Factory{opts: opts.withDefaults()}
}

func (opts Options) withDefaults() Options {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return opts
}

// ForToken returns a client authenticated with the given access token
func (f *Factory) ForToken(token string) *Client {
	return New(token, f.opts)
}

// Client issues one-shot calls to the upstream API on behalf of one token
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// New creates a new client for the given access token
func New(token string, opts Options) *Client {
	opts = opts.withDefaults()
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Client{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &oauth2.Transport{Source: src, Base: opts.Transport},
		},
	}
}

// BaseURL returns the upstream root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// errorBody is the error document returned by the upstream
type errorBody struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

// do performs one request and decodes the JSON response into out
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	raw, err := c.doRaw(ctx, op, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Op: op, Message: fmt.Sprintf("failed to decode response: %v", err), Kind: KindOther, Err: err}
	}
	return nil
}

// doRaw performs one request and returns the raw response body
func (c *Client) doRaw(ctx context.Context, op, method, path string, query url.Values, body interface{}) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &APIError{Op: op, Message: fmt.Sprintf("failed to encode request: %v", err), Kind: KindOther, Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &APIError{Op: op, Message: fmt.Sprintf("failed to create request: %v", err), Kind: KindOther, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		if eb.Message == "" {
			eb.Message = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{
			Op:               op,
			StatusCode:       resp.StatusCode,
			Message:          eb.Message,
			DocumentationURL: eb.DocumentationURL,
			Kind:             classifyStatus(resp),
		}
	}
	return raw, nil
}

// repoPath returns /repos/{owner}/{repo} with both parts escaped
func repoPath(owner, repo string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}

// escapePath escapes every segment of a slash separated path
func escapePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// EncodeContent encodes text for the contents endpoint
func EncodeContent(content string) string {
	return base64.StdEncoding.EncodeToString([]byte(content))
}

// DecodeContent decodes a contents payload, which the upstream wraps with newlines
func DecodeContent(encoded string) (string, error) {
	cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(encoded)
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
