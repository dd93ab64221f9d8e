package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/gitcoderapi/internal/apperror"
	"github.com/nsvirk/gitcoderapi/pkg/utils/response"
	"github.com/nsvirk/gitcoderapi/pkg/utils/zaplogger"
)

// HTTPErrorHandler renders every error returned by handlers or middleware in the JSON envelope
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, message, details := classify(err)
	if status >= http.StatusInternalServerError {
		zaplogger.Error("request failed", zaplogger.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
			"status": status,
			"error":  err.Error(),
		})
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = response.ErrorResponse(c, status, message, details)
	}
	if err != nil {
		zaplogger.Error("failed to write error response", zaplogger.Fields{"error": err.Error()})
	}
}

func classify(err error) (int, string, string) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus(), appErr.Message, appErr.Details
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := fmt.Sprint(httpErr.Message)
		if message == "" {
			message = http.StatusText(httpErr.Code)
		}
		details := ""
		if httpErr.Internal != nil {
			details = httpErr.Internal.Error()
		}
		return httpErr.Code, message, details
	}

	return http.StatusInternalServerError, "Internal server error", err.Error()
}
