package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yrajput/closet-organizer/internal/apperror"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

// CreateSession inserts s. AccessToken must already be sealed.
//
// Timestamps are stored in UTC so that expires_at compares correctly as
// text in DeleteExpiredSessions.
func (db *DB) CreateSession(ctx context.Context, s *model.Session) error {
	profile, err := json.Marshal(s.Identity.Profile)
	if err != nil {
		return fmt.Errorf("sqlite: encoding profile for session %s: %w", s.ID, err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, access_token, login, profile, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.AccessToken,
		s.Identity.Login,
		string(profile),
		s.CreatedAt.UTC(),
		s.ExpiresAt.UTC(),
	)
	if err != nil {
		return apperror.Unavailable("session", fmt.Errorf("inserting session %s: %w", s.ID, err))
	}
	return nil
}

// GetSession returns apperror.ErrNotFound when no row has id.
func (db *DB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var (
		s       model.Session
		profile string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, access_token, login, profile, created_at, expires_at
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(
		&s.ID,
		&s.AccessToken,
		&s.Identity.Login,
		&profile,
		&s.CreatedAt,
		&s.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, apperror.Unavailable("session", fmt.Errorf("getting session %s: %w", id, err))
	}

	if err := json.Unmarshal([]byte(profile), &s.Identity.Profile); err != nil {
		return nil, apperror.Corrupt("session", id, "profile")
	}
	if s.Identity.Login == "" {
		return nil, apperror.Corrupt("session", id, "login")
	}
	return &s, nil
}

// DeleteSession removes the row. Deleting a missing session is not an error.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return apperror.Unavailable("session", fmt.Errorf("deleting session %s: %w", id, err))
	}
	return nil
}

// DeleteExpiredSessions removes every session whose expiry is before now and
// returns how many rows went. idx_sessions_expires_at keeps it a range scan.
func (db *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, apperror.Unavailable("session", fmt.Errorf("deleting expired sessions: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.Unavailable("session", fmt.Errorf("counting expired sessions: %w", err))
	}
	return n, nil
}
