// Package models contains the models for the Git Coder API
package models

import (
	"time"
)

// UserProfile is the snapshot of the upstream identity captured at login
type UserProfile struct {
	ID                int64  `json:"id"`
	Login             string `json:"login"`
	Name              string `json:"name"`
	AvatarURL         string `json:"avatar_url"`
	HTMLURL           string `json:"html_url"`
	Bio               string `json:"bio"`
	PublicRepos       int    `json:"public_repos"`
	TotalPrivateRepos int    `json:"total_private_repos"`
}

// Session binds an opaque session id to an upstream access token
type Session struct {
	ID             string      `json:"id"`
	User           UserProfile `json:"user"`
	AccessToken    string      `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	LastAccessedAt time.Time   `json:"last_accessed_at"`
}

// IsExpired reports whether the session has been idle longer than maxAge at now
func (s *Session) IsExpired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastAccessedAt) > maxAge
}

// ShortID returns a log-safe prefix of the session id
func ShortID(id string) string {
	if len(id) <= 6 {
		return id
	}
	return id[:6] + "..."
}
