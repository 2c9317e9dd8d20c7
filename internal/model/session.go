package model

import (
	"strings"
	"time"
)

// Identity is the caller's resolved GitHub profile.
//
// Login is the only field the application relies on. Profile keeps the full
// provider response so pages can show it without another API call.
type Identity struct {
	Login   string         `json:"login"`
	Profile map[string]any `json:"profile,omitempty"`
}

// GitHubID returns the numeric account id from the profile, or 0.
// encoding/json decodes numbers into float64 inside map[string]any.
func (i Identity) GitHubID() int64 {
	if v, ok := i.Profile["id"].(float64); ok {
		return int64(v)
	}
	return 0
}

// ProfileString returns a string field from the profile, or "".
func (i Identity) ProfileString(key string) string {
	v, _ := i.Profile[key].(string)
	return strings.TrimSpace(v)
}

// Session is an authenticated browser session.
//
// A Session only ever exists for an identity that passed the organization
// membership check; denied logins never produce one.
type Session struct {
	ID          string    `json:"id"`
	AccessToken string    `json:"-"`
	Identity    Identity  `json:"identity"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
