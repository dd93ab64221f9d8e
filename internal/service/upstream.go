package service

import (
	"errors"
	"strings"

	"github.com/nsvirk/gitcoderapi/internal/apperror"
	"github.com/nsvirk/gitcoderapi/internal/gitapi"
	"github.com/nsvirk/gitcoderapi/internal/models"
)

// RepoRef identifies an upstream repository; it is revalidated upstream on every call
type RepoRef struct {
	Owner string
	Repo  string
}

func (r RepoRef) validate() error {
	if strings.TrimSpace(r.Owner) == "" || strings.TrimSpace(r.Repo) == "" {
		return apperror.Validation("Owner and repo are required")
	}
	return nil
}

// upstream builds per-session clients
type upstream struct {
	github *gitapi.Factory
}

func (u upstream) client(session *models.Session) *gitapi.Client {
	return u.github.ForToken(session.AccessToken)
}

// upstreamError classifies a failed upstream call for the HTTP boundary
func upstreamError(message string, err error) error {
	if errors.Is(err, gitapi.ErrNotAFile) {
		return apperror.Validation("Path refers to a directory, not a file")
	}
	if apiErr, ok := gitapi.AsAPIError(err); ok {
		e := apperror.Upstream(message, apiErr.HTTPStatus(), err)
		e.Details = apiErr.Message
		return e
	}
	return apperror.Internal(message, err)
}
