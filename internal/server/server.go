// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer. It decides:
//   - which URL patterns map to which handlers
//   - which middleware runs on which routes
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go loads config.Config and builds the logger
//	server.New opens Storage, then builds
//	  auth (provider, verifier, tokens, sealer) → session.Manager
//	  → service.AuthService / service.MediaService → handlers
//
// Everything is wired here, in one place, and nothing is global.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/yrajput/closet-organizer/internal/auth"
	"github.com/yrajput/closet-organizer/internal/config"
	"github.com/yrajput/closet-organizer/internal/handler"
	"github.com/yrajput/closet-organizer/internal/middleware"
	"github.com/yrajput/closet-organizer/internal/service"
	"github.com/yrajput/closet-organizer/internal/session"
	"github.com/yrajput/closet-organizer/web"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the stores. Start closes them after the listener has
// drained so in-flight requests finish their writes first.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	storage *Storage

	sessions *session.Manager
	auth     *service.AuthService
	media    *service.MediaService
}

// New opens the stores and builds every service and handler from cfg.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	storage, err := OpenStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	s, err := newServer(cfg, storage, logger)
	if err != nil {
		storage.Close()
		return nil, err
	}
	return s, nil
}

func newServer(cfg config.Config, storage *Storage, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	sealer, err := auth.NewSealer(cfg.Session.Secret)
	if err != nil {
		return nil, fmt.Errorf("creating token sealer: %w", err)
	}

	provider := auth.NewGitHubProvider(auth.ProviderConfig{
		ClientID:     cfg.GitHub.ClientID,
		ClientSecret: cfg.GitHub.ClientSecret,
		CallbackURL:  cfg.CallbackURL(),
		AuthURL:      cfg.GitHub.AuthURL,
		TokenURL:     cfg.GitHub.TokenURL,
		APIURL:       cfg.GitHub.APIURL,
		Timeout:      cfg.GitHub.Timeout,
	})
	verifier, err := auth.NewMembershipVerifier(cfg.GitHub.APIURL, cfg.GitHub.Timeout)
	if err != nil {
		return nil, fmt.Errorf("creating membership verifier: %w", err)
	}

	sessions := session.NewManager(storage.DB, provider, tokens, sealer, session.Config{
		TTL:          cfg.Session.TTL,
		SecureCookie: cfg.Session.SecureCookies,
	}, logger)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		storage:  storage,
		sessions: sessions,
		auth:     service.NewAuthService(provider, provider, verifier, sessions, storage.DB, cfg.GitHub.Org, logger),
		media:    storage.MediaService(cfg.Upload),
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /                  landing page               public
//	GET  /login             redirect to GitHub         public
//	GET  /login/authorized  OAuth callback             public
//	GET  /logout            end the session            public
//	GET  /healthz           liveness                   public
//	GET  /static/*          css                        public
//	GET  /page1 … /page6    galleries                  login required
//	GET  /uploader          upload form                login required
//	POST /uploader          upload submission          login required
//	GET  /media/*           materialized images        login required, local blobs only
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID  tags each request for the log line
//  2. RealIP     reads the client address from proxy headers
//  3. Recoverer  turns a panic into a 500
//  4. LoadSession attaches the session, before Logger so the log line can
//     name the caller
//  5. Logger
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(auth.LoadSession(s.sessions))
	s.router.Use(middleware.Logger(s.logger))

	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		return fmt.Errorf("loading static assets: %w", err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	renderer, err := handler.NewRenderer(web.Templates, s.config.GitHub.Org, s.logger)
	if err != nil {
		return err
	}

	authHandler := handler.NewAuthHandler(s.sessions, s.auth, s.logger)
	pageHandler := handler.NewPageHandler(renderer, s.media, s.logger)
	uploadHandler := handler.NewUploaderHandler(renderer, s.media, s.config.Upload.MaxBytes, s.logger)
	healthHandler := handler.NewHealthHandler(s.storage.Checks, s.logger)

	s.router.Get("/", pageHandler.Home)
	s.router.Get("/login", authHandler.Login)
	s.router.Get("/login/authorized", authHandler.Callback)
	s.router.Get("/logout", authHandler.Logout)
	s.router.Get("/healthz", healthHandler.Health)

	// Gated routes. RequireLogin is the only thing standing between an
	// anonymous caller and the media service.
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireLogin(s.sessions))

		for _, g := range handler.Galleries {
			r.Get(g.Path, pageHandler.Gallery(g))
		}
		r.Get("/uploader", uploadHandler.Form)
		r.Post("/uploader", uploadHandler.Submit)

		if s.storage.Local != nil {
			mediaHandler := handler.NewMediaHandler(s.storage.Local, s.logger)
			r.Get("/media/*", mediaHandler.Serve)
		}
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully:
//  1. stop accepting new connections
//  2. wait up to 30s for in-flight requests
//  3. close the stores
func (s *Server) Start() error {
	defer func() {
		if err := s.storage.Close(); err != nil {
			s.logger.Error("closing storage", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads of up to CLOSET_MAX_UPLOAD_BYTES over slow links need
		// more than the header budget.
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("org", s.config.GitHub.Org),
			slog.String("store", s.config.Store.Driver),
			slog.String("blobs", s.config.Blob.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
