package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/yrajput/closet-organizer/internal/apperror"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

// Upsert inserts a user or refreshes their profile, keyed by login.
//
// An existing row keeps its internal ID and CreatedAt; the caller's struct
// is updated in place with the canonical values.
//
// WHY SELECT-THEN-WRITE AND NOT INSERT OR REPLACE?
// SQLite's INSERT OR REPLACE deletes the conflicting row and inserts a new
// one, which would mint a fresh ID and reset created_at on every login.
// Looking the row up first keeps both stable. Two concurrent first logins
// for the same user can both miss the SELECT; the UNIQUE(login) constraint
// makes the second INSERT fail, and the caller only logs that.
//
// WHY KEY ON LOGIN?
// Everything else in the app (media ownership, storage paths, sessions) is
// keyed by the GitHub login, so the users table follows. github_id is kept
// for reference and refreshed on every login.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()

	var (
		existingID string
		createdAt  time.Time
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, created_at FROM users WHERE login = ?`, user.Login,
	).Scan(&existingID, &createdAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return apperror.Unavailable("user", fmt.Errorf("looking up user %s: %w", user.Login, err))
	}

	if existingID != "" {
		user.ID = existingID
		user.CreatedAt = createdAt
		user.UpdatedAt = now
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET github_id = ?, name = ?, avatar_url = ?, updated_at = ?
			 WHERE id = ?`,
			user.GitHubID,
			user.Name,
			user.AvatarURL,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return apperror.Unavailable("user", fmt.Errorf("updating user %s: %w", user.Login, err))
		}
		return nil
	}

	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, github_id, login, name, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.GitHubID,
		user.Login,
		user.Name,
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return apperror.Unavailable("user", fmt.Errorf("inserting user %s: %w", user.Login, err))
	}
	return nil
}

// GetByLogin returns apperror.ErrNotFound if nobody with login has logged in.
func (db *DB) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	var u model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, github_id, login, name, avatar_url, created_at, updated_at
		 FROM users WHERE login = ?`,
		login,
	).Scan(
		&u.ID,
		&u.GitHubID,
		&u.Login,
		&u.Name,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", login)
		}
		return nil, apperror.Unavailable("user", fmt.Errorf("getting user %s: %w", login, err))
	}
	return &u, nil
}
