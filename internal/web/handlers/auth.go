package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/LeulTew/aura/internal/auth"
	"github.com/LeulTew/aura/internal/config"
	"github.com/LeulTew/aura/internal/extractor"
	"github.com/LeulTew/aura/internal/facestore"
	"github.com/LeulTew/aura/internal/facestore/postgres"
	"github.com/LeulTew/aura/internal/usage"
	"github.com/LeulTew/aura/internal/web/middleware"
)

// FaceLoginThreshold is the minimum similarity between a login selfie
// and an enrolled reference embedding. Stricter than photo matching.
const FaceLoginThreshold = 0.75

// OrgStore is the organization lookup surface the auth handler needs.
type OrgStore interface {
	GetBySlug(ctx context.Context, slug string) (*postgres.Organization, error)
	GetByID(ctx context.Context, id string) (*postgres.Organization, error)
}

// ProfileStore is the profile surface used by auth and admin handlers.
type ProfileStore interface {
	GetByEmail(ctx context.Context, orgID, email string) (*postgres.Profile, error)
	GetByID(ctx context.Context, id string) (*postgres.Profile, error)
	Create(ctx context.Context, p *postgres.Profile) (string, error)
	SetReferenceEmbedding(ctx context.Context, userID string, vector []float32) error
	FindByEmbedding(ctx context.Context, orgID string, query []float32, threshold float64) (*postgres.Profile, float64, error)
}

// FaceSource extracts face embeddings from image bytes.
type FaceSource interface {
	Detect(ctx context.Context, imageData []byte, mode extractor.Mode) ([]extractor.Detection, error)
}

// AuthHandler handles login and enrollment.
type AuthHandler struct {
	cfg      *config.Config
	tokens   *auth.Manager
	orgs     OrgStore
	profiles ProfileStore
	faces    FaceSource
	usage    usage.Logger
	logger   *slog.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(cfg *config.Config, tokens *auth.Manager, orgs OrgStore, profiles ProfileStore, faces FaceSource, usageLog usage.Logger, logger *slog.Logger) *AuthHandler {
	if usageLog == nil {
		usageLog = usage.NopLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{cfg: cfg, tokens: tokens, orgs: orgs, profiles: profiles, faces: faces, usage: usageLog, logger: logger}
}

type loginRequest struct {
	Org      string `json:"org"`
	Email    string `json:"email"`
	Password string `json:"password"`
	PIN      string `json:"pin"`
}

type loginResponse struct {
	Token string            `json:"token"`
	User  *postgres.Profile `json:"user,omitempty"`
	Org   orgInfo           `json:"org"`
	Sudo  bool              `json:"sudo,omitempty"`
}

type orgInfo struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Login authenticates with email and password, or with the legacy
// admin PIN, scoped to an organization slug.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Org == "" {
		respondError(w, http.StatusBadRequest, "org is required")
		return
	}

	org, err := h.orgs.GetBySlug(r.Context(), req.Org)
	if err != nil {
		// Do not reveal whether the organization exists.
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if req.PIN != "" {
		h.loginWithPIN(w, r, org, req.PIN)
		return
	}

	profile, err := h.profiles.GetByEmail(r.Context(), org.ID, req.Email)
	if err != nil || !auth.CheckPassword(profile.PasswordHash, req.Password) {
		h.logger.Info("login rejected", "org", org.Slug, "email", sanitizeForLog(req.Email))
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.issueToken(w, r, org, profile, false)
}

func (h *AuthHandler) loginWithPIN(w http.ResponseWriter, r *http.Request, org *postgres.Organization, pin string) {
	if !auth.CheckPIN(h.cfg.Auth.AdminPIN, pin) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := h.tokens.Issue(auth.Identity{
		UserID:  "pin-admin",
		Role:    auth.RoleAdmin,
		OrgID:   org.ID,
		OrgSlug: org.Slug,
		OrgName: org.Name,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{
		Token: token,
		Org:   orgInfo{ID: org.ID, Slug: org.Slug, Name: org.Name},
	})
}

// FaceLogin authenticates with a selfie. The largest face in the upload
// is compared against enrolled reference embeddings within the org.
func (h *AuthHandler) FaceLogin(w http.ResponseWriter, r *http.Request) {
	data, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	slug := r.FormValue("org")
	if slug == "" {
		respondError(w, http.StatusBadRequest, "org is required")
		return
	}

	org, err := h.orgs.GetBySlug(r.Context(), slug)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "face not recognized")
		return
	}

	faces, err := h.faces.Detect(r.Context(), data, extractor.LargestOnly)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	profile, sim, err := h.profiles.FindByEmbedding(r.Context(), org.ID, faces[0].Vector, FaceLoginThreshold)
	if errors.Is(err, facestore.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "face not recognized")
		return
	}
	if err != nil {
		respondStoreError(w, err)
		return
	}

	h.usage.Log(r.Context(), usage.Entry{
		OrgID:    org.ID,
		UserID:   profile.ID,
		Action:   usage.ActionFaceLogin,
		Metadata: map[string]any{"similarity": sim},
	})
	h.issueToken(w, r, org, profile, false)
}

// Enroll stores the caller's reference embedding from a selfie upload.
func (h *AuthHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())
	if id == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	data, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file upload")
		return
	}

	faces, err := h.faces.Detect(r.Context(), data, extractor.LargestOnly)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if err := h.profiles.SetReferenceEmbedding(r.Context(), id.UserID, faces[0].Vector); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "enrolled"})
}

// SwitchTenant issues a short-lived token for a superadmin acting inside
// another organization.
func (h *AuthHandler) SwitchTenant(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())
	if id == nil || id.Role != auth.RoleSuperadmin {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req struct {
		OrgID string `json:"org_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrgID == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	org, err := h.orgs.GetByID(r.Context(), req.OrgID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	token, err := h.tokens.IssueSudo(auth.Identity{
		UserID:  id.UserID,
		Email:   id.Email,
		Role:    auth.RoleSuperadmin,
		OrgID:   org.ID,
		OrgSlug: org.Slug,
		OrgName: org.Name,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{
		Token: token,
		Org:   orgInfo{ID: org.ID, Slug: org.Slug, Name: org.Name},
		Sudo:  true,
	})
}

func (h *AuthHandler) issueToken(w http.ResponseWriter, r *http.Request, org *postgres.Organization, profile *postgres.Profile, sudo bool) {
	token, err := h.tokens.Issue(auth.Identity{
		UserID:  profile.ID,
		Email:   profile.Email,
		Role:    profile.Role,
		OrgID:   org.ID,
		OrgSlug: org.Slug,
		OrgName: org.Name,
		Sudo:    sudo,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  profile,
		Org:   orgInfo{ID: org.ID, Slug: org.Slug, Name: org.Name},
		Sudo:  sudo,
	})
}
