package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yrajput/closet-organizer/internal/apperror"
	"github.com/yrajput/closet-organizer/internal/auth"
	"github.com/yrajput/closet-organizer/internal/model"
)

// fakeSessionRepo is an in-memory SessionRepository that records the order
// of operations.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	log      []string
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]model.Session{}}
}

func (f *fakeSessionRepo) CreateSession(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = *s
	f.log = append(f.log, "create:"+s.ID)
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
	f.log = append(f.log, "delete:"+id)
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
	f.log = append(f.log, "prune")
	return n, nil
}

func (f *fakeSessionRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeProvider struct{}

func (fakeProvider) AuthURL(state string) string {
	return "https://github.com/login/oauth/authorize?state=" + url.QueryEscape(state)
}

const testSecret = "a-very-long-session-secret"

func newTestManager(t *testing.T) (*Manager, *fakeSessionRepo) {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	sealer, err := auth.NewSealer(testSecret)
	require.NoError(t, err)
	repo := newFakeSessionRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(repo, fakeProvider{}, tokens, sealer, Config{TTL: time.Hour}, logger), repo
}

// withCookies copies the Set-Cookie headers from rec into a new request,
// dropping expired ones the way a browser would.
func withCookies(rec *httptest.ResponseRecorder, target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			continue
		}
		req.AddCookie(c)
	}
	return req
}

var alice = &model.Identity{Login: "alice", Profile: map[string]any{"login": "alice"}}

func login(t *testing.T, m *Manager, identity *model.Identity) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	_, err := m.CompleteLogin(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/login/authorized", nil),
		"gho_token", identity, true, "acme-org")
	require.NoError(t, err)
	return withCookies(rec, "/page1")
}

func TestBeginLogin_SetsStateCookie(t *testing.T) {
	m, _ := newTestManager(t)
	rec := httptest.NewRecorder()

	target := m.BeginLogin(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, StateCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	u, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, cookies[0].Value, u.Query().Get("state"))
}

func TestVerifyState(t *testing.T) {
	m, _ := newTestManager(t)
	rec := httptest.NewRecorder()
	m.BeginLogin(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	state := rec.Result().Cookies()[0].Value

	tests := []struct {
		name   string
		query  string
		cookie bool
		ok     bool
	}{
		{"match", "state=" + state, true, true},
		{"wrong state", "state=other", true, false},
		{"no state param", "", true, false},
		{"no pending login", "state=" + state, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/login/authorized?"+tt.query, nil)
			if tt.cookie {
				req.AddCookie(&http.Cookie{Name: StateCookieName, Value: state})
			}
			out := httptest.NewRecorder()

			err := m.VerifyState(out, req)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrStateMismatch)
			}

			// The pending state is single-use.
			cookies := out.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, -1, cookies[0].MaxAge)
		})
	}
}

func TestCompleteLogin_MemberAuthenticates(t *testing.T) {
	m, repo := newTestManager(t)

	req := login(t, m, alice)

	s, ok := m.Current(req)
	require.True(t, ok)
	assert.Equal(t, "alice", s.Identity.Login)
	assert.Equal(t, "gho_token", s.AccessToken)
	assert.True(t, m.IsAuthenticated(req))
	assert.Equal(t, 1, repo.count())

	// Stored sealed, not in clear.
	stored, err := repo.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "gho_token", stored.AccessToken)
}

func TestCompleteLogin_NonMemberClearsFirst(t *testing.T) {
	m, repo := newTestManager(t)
	prior := login(t, m, alice)
	priorSession, ok := m.Current(prior)
	require.True(t, ok)

	rec := httptest.NewRecorder()
	bob := &model.Identity{Login: "bob"}
	s, err := m.CompleteLogin(context.Background(), rec, prior, "gho_bob", bob, false, "acme-org")

	assert.Nil(t, s)
	var nm *NotMemberError
	require.True(t, errors.As(err, &nm))
	assert.Equal(t, "bob", nm.Login)
	assert.Equal(t, "acme-org", nm.Org)
	assert.Equal(t, "bob is not a member of acme-org", nm.Error())

	// The prior session row is gone and nothing new was created.
	assert.Equal(t, 0, repo.count())
	assert.Equal(t, "delete:"+priorSession.ID, repo.log[len(repo.log)-1])
	assert.False(t, m.IsAuthenticated(prior))

	// The cookie is expired.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestCompleteLogin_ReplacesPriorSession(t *testing.T) {
	m, repo := newTestManager(t)
	prior := login(t, m, alice)
	old, _ := m.Current(prior)

	rec := httptest.NewRecorder()
	s, err := m.CompleteLogin(context.Background(), rec, prior, "gho_new", alice, true, "acme-org")
	require.NoError(t, err)

	assert.NotEqual(t, old.ID, s.ID)
	assert.Equal(t, 1, repo.count())
	assert.False(t, m.IsAuthenticated(prior))
	assert.True(t, m.IsAuthenticated(withCookies(rec, "/page1")))
}

func TestCompleteLogin_PrunesExpiredSessions(t *testing.T) {
	m, repo := newTestManager(t)
	stale := login(t, m, alice)
	staleSession, _ := m.Current(stale)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	rec := httptest.NewRecorder()
	bob := &model.Identity{Login: "bob", Profile: map[string]any{"login": "bob"}}
	s, err := m.CompleteLogin(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/login/authorized", nil), "gho_bob", bob, true, "acme-org")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.count())
	_, err = repo.GetSession(context.Background(), staleSession.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = repo.GetSession(context.Background(), s.ID)
	assert.NoError(t, err)
	assert.Equal(t, "prune", repo.log[len(repo.log)-1])
}

func TestLogout(t *testing.T) {
	m, repo := newTestManager(t)
	req := login(t, m, alice)

	rec := httptest.NewRecorder()
	m.Logout(rec, req)

	assert.Equal(t, 0, repo.count())
	assert.False(t, m.IsAuthenticated(req))
	assert.False(t, m.IsAuthenticated(withCookies(rec, "/")))
}

func TestLogout_Anonymous(t *testing.T) {
	m, repo := newTestManager(t)

	rec := httptest.NewRecorder()
	m.Logout(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	assert.Empty(t, repo.log)
	require.Len(t, rec.Result().Cookies(), 1)
}

func TestCurrent_Anonymous(t *testing.T) {
	m, _ := newTestManager(t)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"garbage cookie", &http.Cookie{Name: CookieName, Value: "not-a-jwt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			assert.False(t, m.IsAuthenticated(req))
		})
	}
}

func TestCurrent_UnknownSession(t *testing.T) {
	m, _ := newTestManager(t)
	signed, err := m.tokens.Generate("never-created")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: signed})

	assert.False(t, m.IsAuthenticated(req))
}

func TestCurrent_ExpiredRow(t *testing.T) {
	m, _ := newTestManager(t)
	req := login(t, m, alice)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	assert.False(t, m.IsAuthenticated(req))
}
