package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/LeulTew/aura/internal/auth"
	"github.com/LeulTew/aura/internal/config"
	"github.com/LeulTew/aura/internal/facestore"
	"github.com/LeulTew/aura/internal/facestore/postgres"
	"github.com/LeulTew/aura/internal/imgutil"
	"github.com/LeulTew/aura/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
)

// PhotoPathStore resolves photo files and folders within a tenant.
type PhotoPathStore interface {
	GetPath(ctx context.Context, tenantID, photoID string) (string, error)
	ListFolders(ctx context.Context, tenantID string) ([]string, error)
	CountByTenant(ctx context.Context, tenantID string) (int, error)
}

// AdminHandler serves tenant administration endpoints.
type AdminHandler struct {
	cfg      *config.Config
	store    facestore.Store
	paths    PhotoPathStore
	orgs     OrgStore
	profiles ProfileStore
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(cfg *config.Config, store facestore.Store, paths PhotoPathStore, orgs OrgStore, profiles ProfileStore) *AdminHandler {
	return &AdminHandler{cfg: cfg, store: store, paths: paths, orgs: orgs, profiles: profiles}
}

// DBStats reports store totals plus the caller's tenant counts.
func (h *AdminHandler) DBStats(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}

	resp := map[string]any{"store": stats}
	if h.paths != nil {
		if n, err := h.paths.CountByTenant(r.Context(), id.OrgID); err == nil {
			resp["tenant_faces"] = n
		}
	}
	if h.orgs != nil {
		if org, err := h.orgs.GetByID(r.Context(), id.OrgID); err == nil {
			resp["storage_used_bytes"] = org.StorageUsedBytes
			resp["plan"] = org.Plan
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Folders lists the distinct directories holding the tenant's photos.
func (h *AdminHandler) Folders(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())

	folders, err := h.paths.ListFolders(r.Context(), id.OrgID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

// Image serves a photo file by ID, optionally resized with ?size=N.
// Access is scoped to the caller's tenant and the configured photo root.
func (h *AdminHandler) Image(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())
	photoID := chi.URLParam(r, "id")

	path, err := h.paths.GetPath(r.Context(), id.OrgID, photoID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if root := h.cfg.Web.PhotoRoot; root != "" {
		abs, err := filepath.Abs(path)
		if err != nil || !strings.HasPrefix(abs, filepath.Clean(root)+string(os.PathSeparator)) {
			respondError(w, http.StatusForbidden, "photo outside configured root")
			return
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		respondError(w, http.StatusNotFound, "photo file missing")
		return
	}

	if v := r.URL.Query().Get("size"); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size > 0 && size <= 4096 {
			if resized, err := imgutil.ResizeToFit(data, size); err == nil {
				data = resized
			}
		}
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// QR renders a QR code PNG for a share URL under the public domain.
func (h *AdminHandler) QR(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	// Only encode links under our own domain.
	if base := h.cfg.Web.PublicDomain; base == "" || !strings.HasPrefix(target, base) {
		respondError(w, http.StatusBadRequest, "url must be under the public domain")
		return
	}

	png, err := qrcode.Encode(target, qrcode.Medium, 256)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to render QR code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

type inviteRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// Invite creates a profile in the caller's organization. Admins cannot
// grant a role above their own.
func (h *AdminHandler) Invite(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleEmployee
	}
	if !auth.RoleAtLeast(id.Role, req.Role) {
		respondError(w, http.StatusForbidden, "cannot grant a role above your own")
		return
	}
	if len(req.Password) < 8 {
		respondError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	userID, err := h.profiles.Create(r.Context(), &postgres.Profile{
		OrgID:        id.OrgID,
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         req.Role,
		PasswordHash: hash,
	})
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"id":    userID,
		"email": req.Email,
		"role":  req.Role,
	})
}
