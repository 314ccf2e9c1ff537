package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/LeulTew/aura/internal/auth"
	"github.com/LeulTew/aura/internal/facestore/postgres"
)

// PlatformStore is the cross-tenant surface for superadmins.
type PlatformStore interface {
	List(ctx context.Context) ([]postgres.Organization, error)
	Create(ctx context.Context, name, slug, plan string) (*postgres.Organization, error)
	GetPlatformStats(ctx context.Context) (*postgres.PlatformStats, error)
}

// ProfileLister lists profiles across all tenants.
type ProfileLister interface {
	ListAll(ctx context.Context) ([]postgres.Profile, error)
}

// UsageReader lists stored usage log entries.
type UsageReader interface {
	ListRecent(ctx context.Context, limit int) ([]postgres.UsageRecord, error)
}

// SuperadminHandler serves platform-wide operations.
type SuperadminHandler struct {
	orgs     PlatformStore
	profiles ProfileStore
	users    ProfileLister
	activity UsageReader
}

// NewSuperadminHandler creates a superadmin handler. users and activity
// may be nil when the deployment carries no usage log.
func NewSuperadminHandler(orgs PlatformStore, profiles ProfileStore, users ProfileLister, activity UsageReader) *SuperadminHandler {
	return &SuperadminHandler{orgs: orgs, profiles: profiles, users: users, activity: activity}
}

// Stats returns platform-wide aggregates.
func (h *SuperadminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orgs.GetPlatformStats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// ListTenants returns all organizations.
func (h *SuperadminHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgs.List(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

// Users returns every profile across all tenants.
func (h *SuperadminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListAll(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(users),
		"users": users,
	})
}

// Logs returns the most recent usage log entries across all tenants.
func (h *SuperadminHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	logs, err := h.activity.ListRecent(r.Context(), limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(logs),
		"logs":  logs,
	})
}

type createTenantRequest struct {
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	Plan       string `json:"plan"`
	AdminEmail string `json:"admin_email"`
	AdminPass  string `json:"admin_password"`
}

// CreateTenant provisions an organization, optionally with its first admin.
func (h *SuperadminHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	org, err := h.orgs.Create(r.Context(), req.Name, req.Slug, req.Plan)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	resp := map[string]any{"organization": org}
	if req.AdminEmail != "" {
		if len(req.AdminPass) < 8 {
			respondError(w, http.StatusBadRequest, "admin password must be at least 8 characters")
			return
		}
		hash, err := auth.HashPassword(req.AdminPass)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		adminID, err := h.profiles.Create(r.Context(), &postgres.Profile{
			OrgID:        org.ID,
			Email:        req.AdminEmail,
			Role:         auth.RoleAdmin,
			PasswordHash: hash,
		})
		if err != nil {
			respondStoreError(w, err)
			return
		}
		resp["admin_id"] = adminID
	}
	respondJSON(w, http.StatusCreated, resp)
}
