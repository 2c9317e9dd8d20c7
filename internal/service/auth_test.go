package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yrajput/closet-organizer/internal/auth"
	"github.com/yrajput/closet-organizer/internal/flash"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/session"
)

const testSecret = "a-very-long-session-secret"

type authFixture struct {
	svc      *AuthService
	manager  *session.Manager
	sessions *fakeSessionRepo
	users    *fakeUserRepo
	gh       *fakeGitHub
}

type noopAuthURL struct{}

func (noopAuthURL) AuthURL(state string) string { return "https://github.test/authorize?state=" + state }

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	sealer, err := auth.NewSealer(testSecret)
	require.NoError(t, err)

	f := &authFixture{
		sessions: newFakeSessionRepo(),
		users:    newFakeUserRepo(),
		gh: &fakeGitHub{
			token:    "gho_abcdef123456",
			identity: &model.Identity{Login: "alice", Profile: map[string]any{"login": "alice", "id": float64(7), "name": "Alice"}},
			member:   true,
		},
	}
	f.manager = session.NewManager(f.sessions, noopAuthURL{}, tokens, sealer, session.Config{TTL: time.Hour}, discardLogger())
	f.svc = NewAuthService(f.gh, f.gh, f.gh, f.manager, f.users, "acme-org", discardLogger())
	return f
}

// callback builds the browser's return from GitHub: a pending state cookie
// plus the given query with that state, and any extra cookies.
func callback(query url.Values, extra ...*http.Cookie) *http.Request {
	query.Set("state", "pending-state")
	req := httptest.NewRequest(http.MethodGet, "/login/authorized?"+query.Encode(), nil)
	req.AddCookie(&http.Cookie{Name: session.StateCookieName, Value: "pending-state"})
	for _, c := range extra {
		req.AddCookie(c)
	}
	return req
}

func liveCookies(rec *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Name == session.CookieName {
			out = append(out, c)
		}
	}
	return out
}

// loginAs runs a successful callback and returns the resulting session cookie.
func (f *authFixture) loginAs(t *testing.T) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	s, n := f.svc.HandleCallback(context.Background(), rec, callback(url.Values{"code": {"good"}}))
	require.NotNil(t, s, n.Message)
	cookies := liveCookies(rec)
	require.Len(t, cookies, 1)
	return cookies[0]
}

func (f *authFixture) authenticated(c *http.Cookie) bool {
	req := httptest.NewRequest(http.MethodGet, "/page1", nil)
	if c != nil {
		req.AddCookie(c)
	}
	return f.manager.IsAuthenticated(req)
}

// Scenario A: the provider denies access.
func TestHandleCallback_AccessDenied(t *testing.T) {
	f := newAuthFixture(t)
	prior := f.loginAs(t)

	rec := httptest.NewRecorder()
	q := url.Values{"error": {"access_denied"}, "error_description": {"The user has denied your application access."}}
	s, n := f.svc.HandleCallback(context.Background(), rec, callback(q, prior))

	assert.Nil(t, s)
	assert.Equal(t, flash.KindError, n.Kind)
	assert.Contains(t, n.Message, "Access denied: reason=access_denied error=The user has denied your application access. full={")
	assert.Contains(t, n.Message, `error=["access_denied"]`)
	assert.Equal(t, 0, f.sessions.count())
	assert.False(t, f.authenticated(prior))
	assert.Equal(t, []string{"exchange"}, f.gh.calls[len(f.gh.calls)-1:])
}

// Scenario B: verified identity, not a member.
func TestHandleCallback_NotMember(t *testing.T) {
	f := newAuthFixture(t)
	prior := f.loginAs(t)
	f.gh.member = false

	rec := httptest.NewRecorder()
	s, n := f.svc.HandleCallback(context.Background(), rec, callback(url.Values{"code": {"good"}}, prior))

	assert.Nil(t, s)
	assert.Equal(t, "Unable to login: alice is not a member of acme-org", n.Message)
	assert.Equal(t, GitHubLogoutURL, n.HintURL)
	assert.Equal(t, "Logout of GitHub as user: alice", n.HintText)
	assert.Equal(t, 0, f.sessions.count())
	assert.False(t, f.authenticated(prior))
	assert.Empty(t, liveCookies(rec))
}

// Scenario C: member logs in.
func TestHandleCallback_Member(t *testing.T) {
	f := newAuthFixture(t)

	rec := httptest.NewRecorder()
	s, n := f.svc.HandleCallback(context.Background(), rec, callback(url.Values{"code": {"good"}}))

	require.NotNil(t, s)
	assert.Equal(t, "alice", s.Identity.Login)
	assert.Equal(t, flash.KindSuccess, n.Kind)
	assert.Equal(t, LoginSuccessMessage, n.Message)
	assert.Equal(t, []string{"exchange", "resolve", "verify"}, f.gh.calls)

	cookies := liveCookies(rec)
	require.Len(t, cookies, 1)
	assert.True(t, f.authenticated(cookies[0]))

	u, err := f.users.GetByLogin(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.GitHubID)
	assert.Equal(t, "Alice", u.Name)
}

func TestHandleCallback_UserRecordFailureStillLogsIn(t *testing.T) {
	f := newAuthFixture(t)
	f.users.upsertErr = errors.New("disk full")

	rec := httptest.NewRecorder()
	s, n := f.svc.HandleCallback(context.Background(), rec, callback(url.Values{"code": {"good"}}))

	require.NotNil(t, s)
	assert.Equal(t, LoginSuccessMessage, n.Message)
}

func TestHandleCallback_StateMismatch(t *testing.T) {
	f := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/login/authorized?code=good&state=forged", nil)
	rec := httptest.NewRecorder()
	s, n := f.svc.HandleCallback(context.Background(), rec, req)

	assert.Nil(t, s)
	assert.Contains(t, n.Message, "Access denied: reason=invalid_state")
	assert.NotContains(t, n.Message, "good", "the code must not be echoed")
	assert.Empty(t, f.gh.calls, "no provider call before the state check")
}

func TestHandleCallback_TokenEndpointRejectsCode(t *testing.T) {
	tokenEndpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`))
	}))
	t.Cleanup(tokenEndpoint.Close)

	f := newAuthFixture(t)
	prior := f.loginAs(t)
	provider := auth.NewGitHubProvider(auth.ProviderConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     tokenEndpoint.URL,
		Timeout:      2 * time.Second,
	})
	svc := NewAuthService(provider, f.gh, f.gh, f.manager, f.users, "acme-org", discardLogger())

	rec := httptest.NewRecorder()
	s, n := svc.HandleCallback(context.Background(), rec, callback(url.Values{"code": {"SECRETCODE123456"}}, prior))

	assert.Nil(t, s)
	assert.Contains(t, n.Message, "Access denied: reason=bad_verification_code error=The code passed is incorrect or expired.")
	assert.Contains(t, n.Message, `code=["SECR********"]`)
	assert.NotContains(t, n.Message, "SECRETCODE123456")
	assert.False(t, f.authenticated(prior))
}

func TestHandleCallback_ResolutionFailure(t *testing.T) {
	f := newAuthFixture(t)
	prior := f.loginAs(t)
	f.gh.identity = nil
	f.gh.resolveErr = &auth.ResolutionFailure{Kind: auth.ResolutionMissingLogin, Detail: "GitHub /user response has no login"}

	rec := httptest.NewRecorder()
	s, n := f.svc.HandleCallback(context.Background(), rec, callback(url.Values{"code": {"good"}}, prior))

	assert.Nil(t, s)
	assert.Equal(t, "Unable to login: missing_login: GitHub /user response has no login", n.Message)
	assert.False(t, f.authenticated(prior))
}

func TestHandleCallback_VerificationFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.gh.verifyErr = &auth.VerificationFailure{
		Token:  "gho_abcdef123456",
		Org:    "nonexistent-org",
		Login:  "alice",
		Detail: "looking up organization nonexistent-org: 404 Not Found",
	}

	rec := httptest.NewRecorder()
	s, n := f.svc.HandleCallback(context.Background(), rec, callback(url.Values{"code": {"good"}}))

	assert.Nil(t, s)
	assert.Equal(t, "Unable to connect to GitHub with access token gho_********: looking up organization nonexistent-org: 404 Not Found", n.Message)
	assert.NotContains(t, n.Message, "abcdef123456")
	assert.Equal(t, 0, f.sessions.count())
}

func TestFailureNotice_Unknown(t *testing.T) {
	n := FailureNotice(errors.New("boom"))
	assert.Equal(t, "Unable to login: boom", n.Message)
	assert.Equal(t, flash.KindError, n.Kind)
}
