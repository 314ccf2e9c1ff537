package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/LeulTew/aura/internal/auth"
	"github.com/LeulTew/aura/internal/config"
	"github.com/LeulTew/aura/internal/facestore"
	"github.com/LeulTew/aura/internal/ingest"
	"github.com/LeulTew/aura/internal/match"
	"github.com/LeulTew/aura/internal/usage"
	"github.com/LeulTew/aura/internal/web/handlers"
	"github.com/LeulTew/aura/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Deps carries everything the HTTP layer needs. Optional fields (Orgs,
// Profiles, Matches, Photos, Paths, Bundles, Platform, Engine) may be nil
// when the embedded store backend runs without PostgreSQL; the routes that
// need them are then not registered.
type Deps struct {
	Config   *config.Config
	Tokens   *auth.Manager
	Faces    handlers.FaceSource
	Store    facestore.Store
	Ingest   *ingest.Coordinator
	Engine   *match.Engine
	Usage    usage.Logger
	Orgs     handlers.OrgStore
	Profiles handlers.ProfileStore
	Matches  handlers.MatchStore
	Photos   handlers.PhotoLister
	Paths    handlers.PhotoPathStore
	Bundles  handlers.BundleStore
	Platform handlers.PlatformStore
	Users    handlers.ProfileLister
	Activity handlers.UsageReader
	Logger   *slog.Logger
}

// Server represents the web server
type Server struct {
	deps       Deps
	router     *chi.Mux
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new web server
func NewServer(deps Deps, port int, host string) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	s := &Server{
		deps:   deps,
		router: r,
		logger: deps.Logger,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long timeout for uploads and scans
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
