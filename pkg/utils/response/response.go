// Package response contains response utility functions and types
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Payload holds the top level keys merged into a success envelope
type Payload map[string]interface{}

// ErrorBody represents the error envelope
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse sends a successful JSON response with the payload keys at the top level
func SuccessResponse(c echo.Context, payload Payload) error {
	return SuccessStatusResponse(c, http.StatusOK, payload)
}

// SuccessStatusResponse is SuccessResponse with an explicit status code
func SuccessStatusResponse(c echo.Context, httpStatus int, payload Payload) error {
	body := make(Payload, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	return c.JSON(httpStatus, body)
}

// ErrorResponse sends an error JSON response
func ErrorResponse(c echo.Context, httpStatus int, message, details string) error {
	return c.JSON(httpStatus, ErrorBody{
		Success: false,
		Error:   message,
		Details: details,
	})
}

// ErrorPayloadResponse sends an error envelope that also carries payload keys
func ErrorPayloadResponse(c echo.Context, httpStatus int, message, details string, payload Payload) error {
	body := make(Payload, len(payload)+3)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = false
	body["error"] = message
	if details != "" {
		body["details"] = details
	}
	return c.JSON(httpStatus, body)
}
