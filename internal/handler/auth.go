package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/yrajput/closet-organizer/internal/flash"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/service"
)

// LoginStarter is the part of *session.Manager the login and logout routes use.
type LoginStarter interface {
	BeginLogin(w http.ResponseWriter, r *http.Request) string
	Logout(w http.ResponseWriter, r *http.Request)
}

// CallbackHandler runs the OAuth callback. *service.AuthService implements it.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, w http.ResponseWriter, r *http.Request) (*model.Session, flash.Notice)
}

// AuthHandler owns the GitHub login routes.
//
//   - Login    → redirect the browser to GitHub's authorization page
//   - Callback → finish the login and land on / with a notice
//   - Logout   → drop the session and land on / with a notice
//
// Every outcome of the callback, success or failure, is a redirect to the
// landing page. Nothing here answers with an error status.
type AuthHandler struct {
	sessions LoginStarter
	callback CallbackHandler
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(sessions LoginStarter, callback CallbackHandler, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, callback: callback, logger: logger}
}

// Login redirects to GitHub.
//
// HTTP: GET /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.sessions.BeginLogin(w, r), http.StatusFound)
}

// Callback completes the login.
//
// HTTP: GET /login/authorized?code=...&state=...
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	_, notice := h.callback.HandleCallback(r.Context(), w, r)
	flash.Write(w, notice)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout ends the session. It is safe to call without one.
//
// HTTP: GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w, r)
	flash.Write(w, flash.Info(service.LogoutMessage))
	http.Redirect(w, r, "/", http.StatusFound)
}
