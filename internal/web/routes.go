package web

import (
	"github.com/LeulTew/aura/internal/auth"
	"github.com/LeulTew/aura/internal/web/handlers"
	"github.com/LeulTew/aura/internal/web/middleware"
	"github.com/go-chi/chi/v5"
)

func (s *Server) setupRoutes() {
	d := s.deps

	authHandler := handlers.NewAuthHandler(d.Config, d.Tokens, d.Orgs, d.Profiles, d.Faces, d.Usage, d.Logger)
	photosHandler := handlers.NewPhotosHandler(d.Faces, d.Store, d.Ingest, d.Usage, d.Config.Match.Threshold, d.Logger)
	scanHandler := handlers.NewScanHandler(d.Ingest, d.Logger)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes
		if d.Orgs != nil && d.Profiles != nil {
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/face-login", authHandler.FaceLogin)
		}

		// All other routes require a valid token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(d.Tokens))

			r.Post("/embed", photosHandler.Embed)
			r.Post("/photos/index", photosHandler.Index)
			r.Post("/photos/search", photosHandler.Search)

			if d.Orgs != nil && d.Profiles != nil {
				r.Post("/auth/enroll", authHandler.Enroll)
			}

			if d.Engine != nil && d.Matches != nil && d.Photos != nil {
				matchHandler := handlers.NewMatchHandler(d.Engine, d.Matches, d.Photos)
				r.Get("/match/mine", matchHandler.Mine)
				r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/match/run", matchHandler.Run)
			}

			if d.Bundles != nil && d.Photos != nil {
				bundlesHandler := handlers.NewBundlesHandler(d.Bundles, d.Photos, d.Usage)
				r.Get("/bundles", bundlesHandler.List)
				r.Get("/bundles/{id}", bundlesHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(auth.RoleEmployee))
					r.Post("/bundles", bundlesHandler.Create)
					r.Delete("/bundles/{id}", bundlesHandler.Delete)
				})
			}

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.RoleAdmin))

				adminHandler := handlers.NewAdminHandler(d.Config, d.Store, d.Paths, d.Orgs, d.Profiles)
				r.Get("/db/stats", adminHandler.DBStats)
				r.Post("/photos/scan", scanHandler.Scan)
				if d.Paths != nil {
					r.Get("/folders", adminHandler.Folders)
					r.Get("/image/{id}", adminHandler.Image)
				}
				r.Get("/qr", adminHandler.QR)
				if d.Profiles != nil {
					r.Post("/invite", adminHandler.Invite)
				}
			})

			// Superadmin routes
			if d.Platform != nil && d.Profiles != nil {
				superHandler := handlers.NewSuperadminHandler(d.Platform, d.Profiles, d.Users, d.Activity)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(auth.RoleSuperadmin))
					r.Get("/superadmin/stats", superHandler.Stats)
					r.Get("/superadmin/tenants", superHandler.ListTenants)
					r.Post("/superadmin/tenants", superHandler.CreateTenant)
					r.Post("/superadmin/switch-tenant", authHandler.SwitchTenant)
					if d.Users != nil {
						r.Get("/superadmin/users", superHandler.Users)
					}
					if d.Activity != nil {
						r.Get("/superadmin/logs", superHandler.Logs)
					}
				})
			}
		})
	})
}
