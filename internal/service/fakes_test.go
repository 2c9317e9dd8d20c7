package service

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/yrajput/closet-organizer/internal/apperror"
	"github.com/yrajput/closet-organizer/internal/auth"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================
//
// Hand-written in-memory fakes keep the tests dependency-free and make it
// obvious what each collaborator does.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUserRepo is an in-memory repository.UserRepository keyed by login.
type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]*model.User
	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Upsert(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.users[u.Login]; ok {
		u.ID = existing.ID
		u.CreatedAt = existing.CreatedAt
	} else {
		u.ID = "user-" + u.Login
		u.CreatedAt = time.Now()
	}
	u.UpdatedAt = time.Now()
	copied := *u
	f.users[u.Login] = &copied
	return nil
}

func (f *fakeUserRepo) GetByLogin(_ context.Context, login string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[login]
	if !ok {
		return nil, apperror.NotFound("user", login)
	}
	copied := *u
	return &copied, nil
}

// fakeSessionRepo is an in-memory repository.SessionRepository.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]model.Session)}
}

func (f *fakeSessionRepo) CreateSession(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeSessionRepo) GetSession(_ context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	return &s, nil
}

func (f *fakeSessionRepo) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionRepo) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.sessions {
		if s.ExpiresAt.Before(now) {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// fakeGitHub stands in for the three provider calls. Each field is the
// canned answer; calls records what was invoked.
type fakeGitHub struct {
	token       string
	exchangeErr error
	identity    *model.Identity
	resolveErr  error
	member      bool
	verifyErr   error
	calls       []string
}

func (f *fakeGitHub) Exchange(_ context.Context, resp auth.AuthorizationResponse) (string, error) {
	f.calls = append(f.calls, "exchange")
	if resp.Error != "" {
		return "", &auth.AuthFailure{Code: resp.Error, Description: resp.ErrorDescription, Params: resp.Params}
	}
	return f.token, f.exchangeErr
}

func (f *fakeGitHub) ResolveIdentity(context.Context, string) (*model.Identity, error) {
	f.calls = append(f.calls, "resolve")
	return f.identity, f.resolveErr
}

func (f *fakeGitHub) Verify(_ context.Context, _, _, _ string) (bool, error) {
	f.calls = append(f.calls, "verify")
	return f.member, f.verifyErr
}

// fakeMediaRepo is an in-memory repository.MediaRepository that keeps
// insertion order.
type fakeMediaRepo struct {
	mu      sync.Mutex
	records []model.MediaRecord
	listErr error
	queries int
}

func (f *fakeMediaRepo) Insert(_ context.Context, rec *model.MediaRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID == "" {
		rec.ID = "media-" + string(rune('a'+len(f.records)))
	}
	if field := rec.Validate(); field != "" {
		return apperror.ValidationFailed(field, "invalid "+field)
	}
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeMediaRepo) List(_ context.Context, filter repository.MediaFilter) iter.Seq2[*model.MediaRecord, error] {
	return func(yield func(*model.MediaRecord, error) bool) {
		f.mu.Lock()
		f.queries++
		if f.listErr != nil {
			f.mu.Unlock()
			yield(nil, f.listErr)
			return
		}
		var matched []model.MediaRecord
		for _, r := range f.records {
			if r.Owner != filter.Owner {
				continue
			}
			if filter.Category != "" && !r.HasCategory(filter.Category) {
				continue
			}
			matched = append(matched, r)
		}
		f.mu.Unlock()

		for i := range matched {
			if !yield(&matched[i], nil) {
				return
			}
		}
	}
}

func (f *fakeMediaRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}
