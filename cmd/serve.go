package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeulTew/aura/internal/auth"
	"github.com/LeulTew/aura/internal/config"
	"github.com/LeulTew/aura/internal/facestore/postgres"
	"github.com/LeulTew/aura/internal/ingest"
	"github.com/LeulTew/aura/internal/match"
	"github.com/LeulTew/aura/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Aura API server.
With the PostgreSQL backend, all multi-tenant routes (auth, matching,
bundles, superadmin) are available. With the embedded backend only the
core embed/index/search routes are served.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if port == 0 {
		port = cfg.Web.Port
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger()

	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	tokens, err := auth.NewManager(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	b, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer b.close(logger)

	faces := newExtractorClient(cfg)

	deps := web.Deps{
		Config: cfg,
		Tokens: tokens,
		Faces:  faces,
		Store:  b.store,
		Usage:  b.usage,
		Logger: logger,
	}

	if b.pool != nil {
		orgs := postgres.NewOrgRepository(b.pool)
		profiles := postgres.NewProfileRepository(b.pool)
		photos := postgres.NewPhotoRepository(b.pool, cfg.Store.Dim)
		matches := postgres.NewMatchRepository(b.pool)

		deps.Orgs = orgs
		deps.Profiles = profiles
		deps.Matches = matches
		deps.Photos = photos
		deps.Paths = photos
		deps.Bundles = postgres.NewBundleRepository(b.pool)
		deps.Platform = orgs
		deps.Users = profiles
		deps.Activity = postgres.NewUsageLogger(b.pool, logger)
		deps.Engine = match.NewEngine(profiles, b.store, matches, b.usage,
			match.WithThreshold(cfg.Match.Threshold))
		deps.Ingest = ingest.NewCoordinator(faces, b.store, orgs, b.usage, logger)
	} else {
		deps.Ingest = ingest.NewCoordinator(faces, b.store, nil, b.usage, logger)
	}

	port, host := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(deps, port, host)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	return server.Start()
}
