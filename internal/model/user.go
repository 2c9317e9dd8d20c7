// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a GitHub account that has completed a verified login at least once.
//
// Rows are upserted on every successful login, so every MediaRecord.Owner
// refers to a Login that exists here. Membership is NOT re-checked from this
// table; it only records that the check passed at some point.
type User struct {
	ID        string    `json:"id"        db:"id"`
	GitHubID  int64     `json:"githubId"  db:"github_id"`  // GitHub's numeric user ID
	Login     string    `json:"login"     db:"login"`      // GitHub username, unique
	Name      string    `json:"name"      db:"name"`       // Display name (may be empty)
	AvatarURL string    `json:"avatarUrl" db:"avatar_url"` // Profile picture URL
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
