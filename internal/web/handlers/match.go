package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/LeulTew/aura/internal/facestore"
	"github.com/LeulTew/aura/internal/match"
	"github.com/LeulTew/aura/internal/web/middleware"
)

// MatchStore lists persisted match links.
type MatchStore interface {
	ListPhotoIDs(ctx context.Context, userID string) ([]string, error)
}

// PhotoLister resolves photo IDs to records within a tenant.
type PhotoLister interface {
	ListByIDs(ctx context.Context, tenantID string, ids []string) ([]facestore.FaceRecord, error)
}

// MatchHandler runs identity matching and serves match results.
type MatchHandler struct {
	engine *match.Engine
	links  MatchStore
	photos PhotoLister
}

// NewMatchHandler creates a match handler.
func NewMatchHandler(engine *match.Engine, links MatchStore, photos PhotoLister) *MatchHandler {
	return &MatchHandler{engine: engine, links: links, photos: photos}
}

// Run matches a user's reference embedding against the tenant's photos
// and persists the links. Admin only; matching yourself uses /match/mine.
func (h *MatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	result, err := h.engine.MatchIdentity(r.Context(), id.OrgID, req.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"user_id":   result.UserID,
		"threshold": result.Threshold,
		"matched":   len(result.Matches),
		"persisted": result.Persisted,
		"results":   searchResultsJSON(result.Matches),
	})
}

// Mine re-runs matching for the caller and returns their photos.
func (h *MatchHandler) Mine(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())

	result, err := h.engine.MatchIdentity(r.Context(), id.OrgID, id.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	ids, err := h.links.ListPhotoIDs(r.Context(), id.UserID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	records, err := h.photos.ListByIDs(r.Context(), id.OrgID, ids)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	photos := make([]searchResultJSON, len(records))
	for i, rec := range records {
		photos[i] = searchResultJSON{
			PhotoID:    rec.ID,
			SourcePath: rec.SourcePath,
			PhotoDate:  rec.PhotoDate,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"matched":   len(result.Matches),
		"threshold": result.Threshold,
		"photos":    photos,
	})
}
