// Package session owns the login state machine:
//
//	Anonymous → PendingAuthorization → Authenticated | Anonymous
//
// A session row exists only for an identity that passed the organization
// membership check. Every failed callback, every denied login and every
// logout leaves the browser anonymous.
//
// TWO COOKIES, TWO JOBS:
//   - oauth_state    random xid set by BeginLogin, Path=/login, 10 minutes.
//     The callback must echo it back; that is the CSRF defence for the
//     OAuth redirect. It is consumed on first use, match or not.
//   - closet_session signed JWT whose subject is the session row ID.
//     HttpOnly and SameSite=Lax, so scripts cannot read it and cross-site
//     POSTs do not carry it.
//
// WHERE THE ACCESS TOKEN LIVES:
// The GitHub token is sealed (see auth.Sealer) before it reaches the
// sessions table and unsealed in Current. The sealed form is bound to the
// session ID, so copying a row under another ID does not yield a token.
//
// Expired rows are swept on every successful login (pruneExpired); Current
// also refuses them, so the sweep is only about table size.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/yrajput/closet-organizer/internal/apperror"
	"github.com/yrajput/closet-organizer/internal/auth"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/repository"
)

const (
	// CookieName holds the signed session token.
	CookieName = "closet_session"
	// StateCookieName holds the pending OAuth state between /login and the
	// callback.
	StateCookieName = "oauth_state"

	stateTTL = 10 * time.Minute
)

// ErrStateMismatch means the callback's state did not match the pending
// login, or there was no pending login.
var ErrStateMismatch = errors.New("session: oauth state mismatch")

// NotMemberError is returned by CompleteLogin for a verified identity that
// is not in the organization.
type NotMemberError struct {
	Login string
	Org   string
}

func (e *NotMemberError) Error() string {
	return fmt.Sprintf("%s is not a member of %s", e.Login, e.Org)
}

// AuthURLer builds the provider authorization URL for a state value.
// *auth.GitHubProvider implements it.
type AuthURLer interface {
	AuthURL(state string) string
}

// Config holds cookie and lifetime settings.
type Config struct {
	TTL          time.Duration
	SecureCookie bool
}

// Manager drives the session state machine.
type Manager struct {
	repo     repository.SessionRepository
	provider AuthURLer
	tokens   *auth.TokenService
	sealer   *auth.Sealer
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a Manager.
func NewManager(repo repository.SessionRepository, provider AuthURLer, tokens *auth.TokenService, sealer *auth.Sealer, cfg Config, logger *slog.Logger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = tokens.TTL()
	}
	return &Manager{
		repo:     repo,
		provider: provider,
		tokens:   tokens,
		sealer:   sealer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// BeginLogin moves the browser to PendingAuthorization: it stores a fresh
// random state in a short-lived cookie and returns the provider URL to
// redirect to. Any existing session is left alone until the callback.
func (m *Manager) BeginLogin(w http.ResponseWriter, r *http.Request) string {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/login",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return m.provider.AuthURL(state)
}

// VerifyState checks the callback's state against the pending cookie and
// consumes the cookie. It must run before the code is exchanged.
func (m *Manager) VerifyState(w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(StateCookieName)
	m.expire(w, StateCookieName, "/login")
	if err != nil || cookie.Value == "" {
		return ErrStateMismatch
	}
	if r.URL.Query().Get("state") != cookie.Value {
		return ErrStateMismatch
	}
	return nil
}

// CompleteLogin is the membership gate.
//
// For a member it replaces any prior session with a new one holding the
// sealed token and identity, and sets the session cookie. For a non-member
// it clears the session first and returns *NotMemberError; no session is
// created.
func (m *Manager) CompleteLogin(ctx context.Context, w http.ResponseWriter, r *http.Request, token string, identity *model.Identity, isMember bool, org string) (*model.Session, error) {
	if !isMember {
		login := identity.Login
		m.Clear(w, r)
		return nil, &NotMemberError{Login: login, Org: org}
	}

	m.destroy(r)

	now := m.now().UTC()
	s := &model.Session{
		ID:          xid.New().String(),
		AccessToken: token,
		Identity:    *identity,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.cfg.TTL),
	}

	sealed, err := m.sealer.Seal(token, s.ID)
	if err != nil {
		return nil, fmt.Errorf("session: sealing token: %w", err)
	}
	stored := *s
	stored.AccessToken = sealed
	if err := m.repo.CreateSession(ctx, &stored); err != nil {
		return nil, fmt.Errorf("session: persisting session: %w", err)
	}

	signed, err := m.tokens.GenerateWithDuration(s.ID, m.cfg.TTL)
	if err != nil {
		_ = m.repo.DeleteSession(ctx, s.ID)
		return nil, fmt.Errorf("session: signing cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	m.logger.Info("session created",
		slog.String("session_id", s.ID),
		slog.String("login", s.Identity.Login),
	)
	m.pruneExpired(ctx, now)
	return s, nil
}

// pruneExpired drops sessions past their expiry. It runs on every login, so
// the table stays bounded by the logins of one TTL. A failure only logs.
func (m *Manager) pruneExpired(ctx context.Context, now time.Time) {
	n, err := m.repo.DeleteExpiredSessions(ctx, now)
	if err != nil {
		m.logger.Warn("pruning expired sessions", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		m.logger.Info("expired sessions pruned", slog.Int64("count", n))
	}
}

// Clear destroys the caller's session row, if any, and expires the cookie.
// It never fails: an unreadable cookie is simply expired.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) {
	m.destroy(r)
	m.expire(w, CookieName, "/")
}

// destroy deletes the row behind the request's cookie.
func (m *Manager) destroy(r *http.Request) {
	id, ok := m.sessionID(r)
	if !ok {
		return
	}
	if err := m.repo.DeleteSession(r.Context(), id); err != nil {
		m.logger.Error("deleting session",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// Logout is Clear under the name the HTTP layer uses.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	m.Clear(w, r)
}

// Current returns the live session behind the request, with its access
// token unsealed. A bad cookie, a missing or expired row, or a token that
// will not unseal all mean anonymous.
func (m *Manager) Current(r *http.Request) (*model.Session, bool) {
	id, ok := m.sessionID(r)
	if !ok {
		return nil, false
	}

	s, err := m.repo.GetSession(r.Context(), id)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			m.logger.Warn("loading session",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	if s.Expired(m.now()) {
		return nil, false
	}

	token, err := m.sealer.Open(s.AccessToken, s.ID)
	if err != nil {
		m.logger.Warn("unsealing session token",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	s.AccessToken = token
	return s, true
}

// IsAuthenticated reports whether the request carries a live session.
func (m *Manager) IsAuthenticated(r *http.Request) bool {
	_, ok := m.Current(r)
	return ok
}

func (m *Manager) sessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	id, err := m.tokens.Validate(cookie.Value)
	if err != nil {
		return "", false
	}
	return id, true
}

func (m *Manager) expire(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
