package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/LeulTew/aura/internal/facestore/postgres"
	"github.com/LeulTew/aura/internal/usage"
	"github.com/LeulTew/aura/internal/web/middleware"
	"github.com/go-chi/chi/v5"
)

// BundleStore is the bundle persistence surface.
type BundleStore interface {
	Create(ctx context.Context, orgID, name, createdBy string, photoIDs []string) (*postgres.Bundle, error)
	Get(ctx context.Context, orgID, bundleID string) (*postgres.Bundle, error)
	ListByOrg(ctx context.Context, orgID string) ([]postgres.Bundle, error)
	Delete(ctx context.Context, orgID, bundleID string) error
}

// BundlesHandler manages photo bundles.
type BundlesHandler struct {
	bundles BundleStore
	photos  PhotoLister
	usage   usage.Logger
}

// NewBundlesHandler creates a bundles handler.
func NewBundlesHandler(bundles BundleStore, photos PhotoLister, usageLog usage.Logger) *BundlesHandler {
	if usageLog == nil {
		usageLog = usage.NopLogger{}
	}
	return &BundlesHandler{bundles: bundles, photos: photos, usage: usageLog}
}

type createBundleRequest struct {
	Name     string   `json:"name"`
	PhotoIDs []string `json:"photo_ids"`
}

// Create makes a new bundle from the given photo IDs.
func (h *BundlesHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())

	var req createBundleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	// Only photos visible to this tenant may be bundled.
	visible, err := h.photos.ListByIDs(r.Context(), id.OrgID, req.PhotoIDs)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	ids := make([]string, len(visible))
	for i, rec := range visible {
		ids[i] = rec.ID
	}

	bundle, err := h.bundles.Create(r.Context(), id.OrgID, req.Name, id.UserID, ids)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	h.usage.Log(r.Context(), usage.Entry{
		OrgID:    id.OrgID,
		UserID:   id.UserID,
		Action:   usage.ActionBundle,
		Metadata: map[string]any{"photos": len(ids)},
	})
	respondJSON(w, http.StatusCreated, bundle)
}

// List returns the tenant's bundles.
func (h *BundlesHandler) List(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())

	bundles, err := h.bundles.ListByOrg(r.Context(), id.OrgID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"bundles": bundles})
}

// Get returns one bundle with its photos resolved.
func (h *BundlesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())

	bundle, err := h.bundles.Get(r.Context(), id.OrgID, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	records, err := h.photos.ListByIDs(r.Context(), id.OrgID, bundle.PhotoIDs)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	photos := make([]searchResultJSON, len(records))
	for i, rec := range records {
		photos[i] = searchResultJSON{PhotoID: rec.ID, SourcePath: rec.SourcePath, PhotoDate: rec.PhotoDate}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"bundle": bundle,
		"photos": photos,
	})
}

// Delete removes a bundle.
func (h *BundlesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())

	if err := h.bundles.Delete(r.Context(), id.OrgID, chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
