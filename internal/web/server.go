// Package web provides the JSON HTTP API for listify.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/justestif/listify/internal/auth"
	"github.com/justestif/listify/internal/catalog"
	"github.com/justestif/listify/internal/playlists"
)

// Default server timeouts.
const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	RateLimit       RateLimit
	Logger          *log.Logger
}

// Services are the application services the handlers call into.
// Catalog is optional; without it the song search route is not registered.
type Services struct {
	Auth      *auth.Service
	Playlists *playlists.Service
	Catalog   catalog.Searcher
}

// Server is the HTTP server for the API.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	limiter  *RateLimiter
	logger   *log.Logger
	cfg      ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, svc Services) *Server {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	s := &Server{
		router:   chi.NewRouter(),
		handlers: NewHandlers(svc, cfg.Logger),
		limiter:  NewRateLimiter(cfg.RateLimit),
		logger:   cfg.Logger,
		cfg:      cfg,
	}

	s.setupMiddleware()
	s.setupRoutes(svc)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.router.Use(s.limiter.Middleware)
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes(svc Services) {
	h := s.handlers

	s.router.NotFound(h.NotFound)
	s.router.MethodNotAllowed(h.MethodNotAllowed)

	s.router.Get("/health", h.Health)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.With(h.RequireAuth).Get("/profile", h.Profile)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Route("/playlists", func(r chi.Router) {
				r.Post("/", h.CreatePlaylist)
				r.Get("/", h.ListPlaylists)
				r.Get("/{id}", h.GetPlaylist)
				r.Put("/{id}", h.UpdatePlaylist)
				r.Delete("/{id}", h.DeletePlaylist)
				r.Post("/{id}/songs", h.AddSong)
				r.Delete("/{id}/songs/{songId}", h.RemoveSong)
			})

			if svc.Catalog != nil {
				r.Get("/songs/search", h.SearchSongs)
			}
		})
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	// Channel to receive shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		s.logger.Info("shutting down server", "signal", sig.String())
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
