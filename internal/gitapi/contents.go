package gitapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nsvirk/gitcoderapi/internal/models"
)

// contentsPutBody is the body of a create or update contents call.
// content is always sent, an empty file encodes to "".
type contentsPutBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// contentsDeleteBody is the body of a delete contents call
type contentsDeleteBody struct {
	Message string `json:"message"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch,omitempty"`
}

// fileResponse is the contents payload of a single file
type fileResponse struct {
	models.ContentEntry
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func contentsPath(owner, repo, path string) string {
	p := repoPath(owner, repo) + "/contents"
	if escaped := escapePath(path); escaped != "" {
		p += "/" + escaped
	}
	return p
}

func refQuery(ref string) url.Values {
	if ref == "" {
		return nil
	}
	return url.Values{"ref": []string{ref}}
}

// ListContents lists a directory; a file path yields a single entry
func (c *Client) ListContents(ctx context.Context, owner, repo, path, ref string) ([]models.ContentEntry, error) {
	const op = "get contents"
	raw, err := c.doRaw(ctx, op, http.MethodGet, contentsPath(owner, repo, path), refQuery(ref), nil)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var entry models.ContentEntry
		if err := json.Unmarshal(trimmed, &entry); err != nil {
			return nil, &APIError{Op: op, Message: fmt.Sprintf("failed to decode response: %v", err), Kind: KindOther, Err: err}
		}
		return []models.ContentEntry{entry}, nil
	}

	entries := []models.ContentEntry{}
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, &APIError{Op: op, Message: fmt.Sprintf("failed to decode response: %v", err), Kind: KindOther, Err: err}
	}
	return entries, nil
}

// GetFile reads a file and decodes its content to text
func (c *Client) GetFile(ctx context.Context, owner, repo, path, ref string) (*models.FileContent, error) {
	const op = "get file content"
	raw, err := c.doRaw(ctx, op, http.MethodGet, contentsPath(owner, repo, path), refQuery(ref), nil)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, ErrNotAFile
	}

	var resp fileResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, &APIError{Op: op, Message: fmt.Sprintf("failed to decode response: %v", err), Kind: KindOther, Err: err}
	}
	if resp.Type != "" && resp.Type != "file" {
		return nil, ErrNotAFile
	}

	decoded, err := DecodeContent(resp.Content)
	if err != nil {
		return nil, &APIError{Op: op, Message: fmt.Sprintf("failed to decode file content: %v", err), Kind: KindOther, Err: err}
	}
	return &models.FileContent{
		ContentEntry:   resp.ContentEntry,
		Encoding:       resp.Encoding,
		DecodedContent: decoded,
	}, nil
}

// CreateFile creates a new file; no revision marker is sent
func (c *Client) CreateFile(ctx context.Context, owner, repo, path, content, message, branch string) (*models.ContentWriteResult, error) {
	body := contentsPutBody{
		Message: message,
		Content: EncodeContent(content),
		Branch:  branch,
	}
	var result models.ContentWriteResult
	if err := c.do(ctx, "create file", http.MethodPut, contentsPath(owner, repo, path), nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateFile overwrites an existing file guarded by its current revision marker
func (c *Client) UpdateFile(ctx context.Context, owner, repo, path, content, message, sha, branch string) (*models.ContentWriteResult, error) {
	body := contentsPutBody{
		Message: message,
		Content: EncodeContent(content),
		SHA:     sha,
		Branch:  branch,
	}
	var result models.ContentWriteResult
	if err := c.do(ctx, "update file", http.MethodPut, contentsPath(owner, repo, path), nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteFile removes a file guarded by its current revision marker
func (c *Client) DeleteFile(ctx context.Context, owner, repo, path, message, sha, branch string) (*models.ContentWriteResult, error) {
	body := contentsDeleteBody{
		Message: message,
		SHA:     sha,
		Branch:  branch,
	}
	var result models.ContentWriteResult
	if err := c.do(ctx, "delete file", http.MethodDelete, contentsPath(owner, repo, path), nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchCode searches code scoped to one repository
func (c *Client) SearchCode(ctx context.Context, owner, repo, query string) (*models.SearchResult, error) {
	q := url.Values{}
	q.Set("q", fmt.Sprintf("%s repo:%s/%s", query, owner, repo))
	q.Set("per_page", fmt.Sprint(searchPageSize))

	result := models.SearchResult{Items: []models.SearchItem{}}
	if err := c.do(ctx, "search code", http.MethodGet, "/search/code", q, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
