package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/gitcoderapi/internal/api/middleware"
	"github.com/nsvirk/gitcoderapi/internal/service"
	"github.com/nsvirk/gitcoderapi/pkg/utils/response"
)

// BranchHandler is the handler for the branches API
type BranchHandler struct {
	service *service.BranchService
}

// NewBranchHandler creates a new handler for the branches API
func NewBranchHandler(service *service.BranchService) *BranchHandler {
	return &BranchHandler{service: service}
}

type branchRequest struct {
	repoParams
	Branch       string `json:"branch" query:"branch"`
	SourceBranch string `json:"sourceBranch"`
}

// ListBranches lists the branches of a repository
func (h *BranchHandler) ListBranches(c echo.Context) error {
	var req repoParams
	if err := c.Bind(&req); err != nil {
		return err
	}
	branches, err := h.service.List(c.Request().Context(), middleware.CurrentSession(c), req.ref())
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{"branches": branches})
}

// CreateBranch creates a branch from sourceBranch or the default branch
func (h *BranchHandler) CreateBranch(c echo.Context) error {
	var req branchRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	ref, err := h.service.Create(c.Request().Context(), middleware.CurrentSession(c), req.ref(), req.Branch, req.SourceBranch)
	if err != nil {
		return err
	}
	return response.SuccessStatusResponse(c, http.StatusCreated, response.Payload{"branch": ref})
}

// SwitchBranch checks that the branch exists before the client makes it active
func (h *BranchHandler) SwitchBranch(c echo.Context) error {
	var req branchRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	branch, err := h.service.Switch(c.Request().Context(), middleware.CurrentSession(c), req.ref(), req.Branch)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{"branch": branch})
}
