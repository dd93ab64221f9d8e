// Package handlers contains the handlers for the API
package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/nsvirk/gitcoderapi/internal/api/middleware"
	"github.com/nsvirk/gitcoderapi/internal/service"
	"github.com/nsvirk/gitcoderapi/pkg/utils/response"
)

// SessionHandler is the handler for the auth API
type SessionHandler struct {
	service *service.SessionService
}

// NewSessionHandler creates a new handler for the auth API
func NewSessionHandler(service *service.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

type loginRequest struct {
	Token       string `json:"token" form:"token"`
	GitHubToken string `json:"githubToken" form:"githubToken"`
}

// Login exchanges an access token for a session
func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	token := req.Token
	if token == "" {
		token = req.GitHubToken
	}

	session, err := h.service.Login(c.Request().Context(), token)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{
		"sessionId": session.ID,
		"user":      session.User,
	})
}

// Logout destroys the session; logging out twice is not an error
func (h *SessionHandler) Logout(c echo.Context) error {
	deleted, err := h.service.Logout(c.Request().Context(), middleware.SessionID(c))
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{
		"message": "Logged out successfully",
		"deleted": deleted,
	})
}

// Validate reports the user of a live session
func (h *SessionHandler) Validate(c echo.Context) error {
	session := middleware.CurrentSession(c)
	return response.SuccessResponse(c, response.Payload{
		"user": session.User,
	})
}
