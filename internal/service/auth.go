// Package service contains the business logic layer.
//
//	Handler (HTTP layer)     → parses requests, writes redirects and pages
//	Service (business layer) → orchestrates, enforces the login and ownership rules
//	Repository (data layer)  → reads/writes the stores
//
// Services depend on small interfaces, not concrete types, so tests drive
// them with in-memory fakes and no network.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/yrajput/closet-organizer/internal/auth"
	"github.com/yrajput/closet-organizer/internal/flash"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/repository"
	"github.com/yrajput/closet-organizer/internal/session"
)

// Notices shown after the callback.
const (
	LoginSuccessMessage = "You were successfully logged in"
	LogoutMessage       = "You were logged out"
	GitHubLogoutURL     = "https://github.com/logout"
)

// TokenExchanger trades an authorization response for an access token.
type TokenExchanger interface {
	Exchange(ctx context.Context, resp auth.AuthorizationResponse) (string, error)
}

// IdentityResolver fetches the profile behind an access token.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*model.Identity, error)
}

// MembershipChecker answers whether login belongs to org.
type MembershipChecker interface {
	Verify(ctx context.Context, token, login, org string) (bool, error)
}

// SessionGate is the part of *session.Manager the callback drives.
type SessionGate interface {
	VerifyState(w http.ResponseWriter, r *http.Request) error
	CompleteLogin(ctx context.Context, w http.ResponseWriter, r *http.Request, token string, identity *model.Identity, isMember bool, org string) (*model.Session, error)
	Clear(w http.ResponseWriter, r *http.Request)
}

// AuthService runs the OAuth callback:
//
//	VerifyState → Exchange → ResolveIdentity → Verify → CompleteLogin
//
// Each step's typed failure ends the flow with the session cleared and a
// notice describing what went wrong. Only a member reaches Authenticated.
type AuthService struct {
	exchanger TokenExchanger
	resolver  IdentityResolver
	verifier  MembershipChecker
	sessions  SessionGate
	users     repository.UserRepository
	org       string
	logger    *slog.Logger
}

// NewAuthService wires the callback flow. users may be nil.
func NewAuthService(
	exchanger TokenExchanger,
	resolver IdentityResolver,
	verifier MembershipChecker,
	sessions SessionGate,
	users repository.UserRepository,
	org string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		exchanger: exchanger,
		resolver:  resolver,
		verifier:  verifier,
		sessions:  sessions,
		users:     users,
		org:       org,
		logger:    logger,
	}
}

// Org is the organization logins are checked against.
func (s *AuthService) Org() string { return s.org }

// HandleCallback drives the callback request to completion and returns the
// notice to show on the landing page. The session is non-nil only for a
// member. Every failure path clears the session before the notice is
// composed.
func (s *AuthService) HandleCallback(ctx context.Context, w http.ResponseWriter, r *http.Request) (*model.Session, flash.Notice) {
	q := r.URL.Query()

	if err := s.sessions.VerifyState(w, r); err != nil {
		return s.fail(w, r, &auth.AuthFailure{
			Code:        "invalid_state",
			Description: "the login request expired or did not start here, please try again",
			Params:      auth.RedactParams(q),
			Err:         err,
		})
	}

	token, err := s.exchanger.Exchange(ctx, auth.AuthorizationResponseFromQuery(q))
	if err != nil {
		return s.fail(w, r, err)
	}

	identity, err := s.resolver.ResolveIdentity(ctx, token)
	if err != nil {
		return s.fail(w, r, err)
	}

	isMember, err := s.verifier.Verify(ctx, token, identity.Login, s.org)
	if err != nil {
		return s.fail(w, r, err)
	}

	sess, err := s.sessions.CompleteLogin(ctx, w, r, token, identity, isMember, s.org)
	if err != nil {
		return s.fail(w, r, err)
	}

	s.recordUser(ctx, identity)
	s.logger.Info("login succeeded", slog.String("login", identity.Login), slog.String("org", s.org))
	return sess, flash.Success(LoginSuccessMessage)
}

// fail clears the session and turns err into a notice. NotMemberError has
// already cleared the session inside CompleteLogin; clearing again is a
// no-op apart from re-expiring the cookie.
func (s *AuthService) fail(w http.ResponseWriter, r *http.Request, err error) (*model.Session, flash.Notice) {
	var nm *session.NotMemberError
	if !errors.As(err, &nm) {
		s.sessions.Clear(w, r)
	}

	n := FailureNotice(err)
	s.logger.Warn("login failed", slog.String("error", err.Error()))
	return nil, n
}

// FailureNotice renders a callback failure as the user-facing notice.
func FailureNotice(err error) flash.Notice {
	var (
		af *auth.AuthFailure
		rf *auth.ResolutionFailure
		vf *auth.VerificationFailure
		nm *session.NotMemberError
	)
	switch {
	case errors.As(err, &af):
		return flash.Error(fmt.Sprintf("Access denied: reason=%s error=%s full=%s",
			af.Code, af.Description, af.FormatParams()))
	case errors.As(err, &rf):
		return flash.Error(fmt.Sprintf("Unable to login: %s: %s", rf.Kind, rf.Detail))
	case errors.As(err, &vf):
		return flash.Error(fmt.Sprintf("Unable to connect to GitHub with access token %s: %s",
			auth.RedactToken(vf.Token), vf.Detail))
	case errors.As(err, &nm):
		n := flash.Error(fmt.Sprintf("Unable to login: %s is not a member of %s", nm.Login, nm.Org))
		n.HintURL = GitHubLogoutURL
		n.HintText = "Logout of GitHub as user: " + nm.Login
		return n
	default:
		return flash.Error("Unable to login: " + err.Error())
	}
}

// recordUser upserts the member into the users table. A failure here does
// not undo the login.
func (s *AuthService) recordUser(ctx context.Context, identity *model.Identity) {
	if s.users == nil {
		return
	}
	u := &model.User{
		GitHubID:  identity.GitHubID(),
		Login:     identity.Login,
		Name:      identity.ProfileString("name"),
		AvatarURL: identity.ProfileString("avatar_url"),
	}
	if err := s.users.Upsert(ctx, u); err != nil {
		s.logger.Error("recording user",
			slog.String("login", identity.Login),
			slog.String("error", err.Error()),
		)
	}
}
