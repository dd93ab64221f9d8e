package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/nsvirk/gitcoderapi/internal/service"
)

const (
	// HeaderSessionID carries the session id for clients that keep it out of URLs
	HeaderSessionID = "X-Session-Id"

	sessionKey = "session"
)

// SessionID extracts the session id from the query, the header or a JSON body, in that order.
// A consumed body is restored so handlers can still bind it.
func SessionID(c echo.Context) string {
	if id := c.QueryParam("sessionId"); id != "" {
		return id
	}
	if id := c.Request().Header.Get(HeaderSessionID); id != "" {
		return id
	}

	req := c.Request()
	if req.Body == nil || !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return ""
	}
	body, err := io.ReadAll(req.Body)
	req.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil || len(body) == 0 {
		return ""
	}

	var peek struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return ""
	}
	return peek.SessionID
}

// SessionMiddleware resolves the request's session and stores it in the context
func SessionMiddleware(sessions *service.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, err := sessions.Resolve(c.Request().Context(), SessionID(c))
			if err != nil {
				return err
			}

			// Add session data to context for use in handlers
			c.Set(sessionKey, session)
			c.Set("user_login", session.User.Login)

			return next(c)
		}
	}
}

// CurrentSession returns the session stored by SessionMiddleware
func CurrentSession(c echo.Context) *models.Session {
	session, _ := c.Get(sessionKey).(*models.Session)
	return session
}
