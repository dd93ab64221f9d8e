package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/gitcoderapi/internal/api/middleware"
	"github.com/nsvirk/gitcoderapi/internal/service"
	"github.com/nsvirk/gitcoderapi/pkg/utils/response"
)

// RepoHandler is the handler for the repositories API
type RepoHandler struct {
	service *service.RepoService
}

// NewRepoHandler creates a new handler for the repositories API
func NewRepoHandler(service *service.RepoService) *RepoHandler {
	return &RepoHandler{service: service}
}

// ListRepos returns all three views when no type is given
func (h *RepoHandler) ListRepos(c echo.Context) error {
	ctx := c.Request().Context()
	session := middleware.CurrentSession(c)

	visibility := c.QueryParam("type")
	if visibility == "" {
		views, err := h.service.ListAll(ctx, session)
		if err != nil {
			return err
		}
		return response.SuccessResponse(c, response.Payload{
			"public":  views.Public,
			"private": views.Private,
			"all":     views.All,
		})
	}

	repos, err := h.service.List(ctx, session, visibility)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{
		"type":  visibility,
		"repos": repos,
	})
}

type createRepoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
	AutoInit    *bool  `json:"autoInit"`
}

// CreateRepo creates a repository for the session user
func (h *RepoHandler) CreateRepo(c echo.Context) error {
	var req createRepoRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	repo, err := h.service.Create(c.Request().Context(), middleware.CurrentSession(c), service.CreateRepoInput{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		AutoInit:    req.AutoInit,
	})
	if err != nil {
		return err
	}
	return response.SuccessStatusResponse(c, http.StatusCreated, response.Payload{"repo": repo})
}
