package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/gitcoderapi/internal/api/middleware"
	"github.com/nsvirk/gitcoderapi/internal/apperror"
	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/nsvirk/gitcoderapi/internal/service"
	"github.com/nsvirk/gitcoderapi/pkg/utils/response"
)

// GitHandler is the handler for the git API
type GitHandler struct {
	gitService    *service.GitService
	commitService *service.CommitService
}

// NewGitHandler creates a new handler for the git API
func NewGitHandler(gitService *service.GitService, commitService *service.CommitService) *GitHandler {
	return &GitHandler{gitService: gitService, commitService: commitService}
}

type historyRequest struct {
	repoParams
	Branch string `query:"branch"`
	Path   string `query:"path"`
}

// GetStatus compares a branch with the default branch
func (h *GitHandler) GetStatus(c echo.Context) error {
	var req historyRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	status, err := h.gitService.Status(c.Request().Context(), middleware.CurrentSession(c), req.ref(), req.Branch)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{"status": status})
}

// Commit applies a batch of file operations in order
func (h *GitHandler) Commit(c echo.Context) error {
	var req models.CommitRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	result, err := h.commitService.Commit(c.Request().Context(), middleware.CurrentSession(c), req)
	if err != nil {
		return err
	}

	payload := response.Payload{
		"batchId": result.BatchID,
		"results": result.Results,
	}
	if result.Success {
		return response.SuccessResponse(c, payload)
	}

	payload["failed"] = result.Failed
	partial := apperror.PartialCommit(
		fmt.Sprintf("Commit stopped at file %d of %d: %s", result.Failed.Index+1, len(req.Files), result.Failed.Error),
		result.Failed.Details,
	)
	return response.ErrorPayloadResponse(c, partial.HTTPStatus(), partial.Message, partial.Details, payload)
}

// GetHistory lists commits of a branch, optionally for one path
func (h *GitHandler) GetHistory(c echo.Context) error {
	var req historyRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	history, err := h.gitService.History(c.Request().Context(), middleware.CurrentSession(c), req.ref(), req.Branch, req.Path)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{"history": history})
}

type pullRequestRequest struct {
	repoParams
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

// CreatePullRequest opens a pull request
func (h *GitHandler) CreatePullRequest(c echo.Context) error {
	var req pullRequestRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	pr, err := h.gitService.CreatePullRequest(c.Request().Context(), middleware.CurrentSession(c), req.ref(), models.PullRequestRef{
		Title: req.Title,
		Body:  req.Body,
		Head:  req.Head,
		Base:  req.Base,
	})
	if err != nil {
		return err
	}
	return response.SuccessStatusResponse(c, http.StatusCreated, response.Payload{"pullRequest": pr})
}

// GetPullRequests lists pull requests by state
func (h *GitHandler) GetPullRequests(c echo.Context) error {
	var req struct {
		repoParams
		State string `query:"state"`
	}
	if err := c.Bind(&req); err != nil {
		return err
	}
	pulls, err := h.gitService.ListPullRequests(c.Request().Context(), middleware.CurrentSession(c), req.ref(), req.State)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{"pullRequests": pulls})
}

// GetAudit lists the caller's recent commit batches for a repository
func (h *GitHandler) GetAudit(c echo.Context) error {
	var req repoParams
	if err := c.Bind(&req); err != nil {
		return err
	}
	audits, err := h.gitService.Audits(c.Request().Context(), middleware.CurrentSession(c), req.ref())
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{
		"enabled": h.gitService.AuditEnabled(),
		"audits":  audits,
	})
}
