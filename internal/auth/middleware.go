package auth

import (
	"context"
	"net/http"

	"github.com/yrajput/closet-organizer/internal/flash"
	"github.com/yrajput/closet-organizer/internal/model"
)

// LoginRequiredMessage is flashed when an anonymous visitor hits a gated page.
const LoginRequiredMessage = "You must be logged in to do that."

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so nothing else can
// shadow the session value.
type contextKey string

const sessionKey contextKey = "session"

// Authenticator looks up the live session behind a request.
// *session.Manager implements it.
type Authenticator interface {
	Current(r *http.Request) (*model.Session, bool)
}

// LoadSession attaches the caller's session to the request context when one
// exists. It never blocks the request; templates use it to decide whether to
// show the login or the logout link.
func LoadSession(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s, ok := authn.Current(r); ok {
				r = r.WithContext(WithSession(r.Context(), s))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLogin gates a route on an authenticated session.
//
// Anonymous callers get the "must be logged in" notice and a redirect to the
// landing page; the wrapped handler never runs for them. This is the single
// place gated pages are protected.
func RequireLogin(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := SessionFromContext(r.Context())
			if !ok {
				s, ok = authn.Current(r)
			}
			if !ok {
				flash.Write(w, flash.Error(LoginRequiredMessage))
				http.Redirect(w, r, "/", http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session stored by LoadSession or
// RequireLogin. It returns (nil, false) for anonymous requests.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*model.Session)
	return s, ok && s != nil
}
