// Package repository declares the storage interfaces the services depend on.
// Implementations live in sub-packages (sqlite, mongo).
package repository

import (
	"context"
	"iter"
	"time"

	"github.com/yrajput/closet-organizer/internal/model"
)

// MediaFilter narrows a media listing. An empty Category matches every record
// of the owner.
type MediaFilter struct {
	Owner    string
	Category model.Category
}

// MediaRepository persists photograph records. Records are append-only.
type MediaRepository interface {
	Insert(ctx context.Context, rec *model.MediaRecord) error
	// List yields matching records in insertion order. Store failures are
	// yielded as errors (apperror.ErrUnavailable, apperror.ErrCorrupt) and
	// end the sequence.
	List(ctx context.Context, f MediaFilter) iter.Seq2[*model.MediaRecord, error]
}

// SessionRepository persists authenticated sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	// DeleteExpiredSessions removes sessions that expired before now.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// UserRepository records every login that passed the membership check.
type UserRepository interface {
	Upsert(ctx context.Context, u *model.User) error
	GetByLogin(ctx context.Context, login string) (*model.User, error)
}
