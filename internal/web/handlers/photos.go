package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/LeulTew/aura/internal/extractor"
	"github.com/LeulTew/aura/internal/facestore"
	"github.com/LeulTew/aura/internal/ingest"
	"github.com/LeulTew/aura/internal/usage"
	"github.com/LeulTew/aura/internal/web/middleware"
)

// PhotosHandler handles embedding, indexing, and similarity search.
type PhotosHandler struct {
	faces     FaceSource
	store     facestore.Store
	ingest    *ingest.Coordinator
	usage     usage.Logger
	threshold float64
	logger    *slog.Logger
}

// NewPhotosHandler creates a photos handler. threshold is the default
// similarity cutoff for searches.
func NewPhotosHandler(faces FaceSource, store facestore.Store, coordinator *ingest.Coordinator, usageLog usage.Logger, threshold float64, logger *slog.Logger) *PhotosHandler {
	if usageLog == nil {
		usageLog = usage.NopLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotosHandler{
		faces:     faces,
		store:     store,
		ingest:    coordinator,
		usage:     usageLog,
		threshold: threshold,
		logger:    logger,
	}
}

// parseMode reads the extraction mode from a form value. Defaults to all
// faces for gallery photos.
func parseMode(r *http.Request) extractor.Mode {
	if r.FormValue("mode") == "largest" {
		return extractor.LargestOnly
	}
	return extractor.AllFaces
}

type faceInfo struct {
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"`
	DetScore  float64   `json:"det_score"`
}

// Embed extracts face embeddings from an uploaded image without storing
// anything.
func (h *PhotosHandler) Embed(w http.ResponseWriter, r *http.Request) {
	data, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file upload")
		return
	}

	faces, err := h.faces.Detect(r.Context(), data, parseMode(r))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	out := make([]faceInfo, len(faces))
	for i, f := range faces {
		out[i] = faceInfo{Embedding: f.Vector, BBox: f.BBox, DetScore: f.DetScore}
	}

	id := middleware.GetIdentityFromContext(r.Context())
	h.usage.Log(r.Context(), usage.Entry{
		OrgID:  id.OrgID,
		UserID: id.UserID,
		Action: usage.ActionEmbed,
		Bytes:  int64(len(data)),
	})
	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"faces_count": len(out),
		"faces":       out,
	})
}

// Index extracts faces from an uploaded image and stores them under the
// caller's organization. A photo with no faces succeeds with zero stored.
func (h *PhotosHandler) Index(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())

	data, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	name := r.FormValue("name")
	if name == "" {
		name = "upload.jpg"
	}

	stored, err := h.ingest.IngestImage(r.Context(), id.OrgID, name, data, parseMode(r))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"faces_indexed": stored,
	})
}

// Search finds stored photos similar to the largest face in an uploaded
// selfie, scoped to the caller's organization.
func (h *PhotosHandler) Search(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())

	data, err := readUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file upload")
		return
	}

	threshold := h.threshold
	if v := r.FormValue("threshold"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			threshold = f
		}
	}
	limit := facestore.DefaultSearchLimit
	if v := r.FormValue("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	faces, err := h.faces.Detect(r.Context(), data, extractor.LargestOnly)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	results, err := h.store.Search(r.Context(), faces[0].Vector, id.OrgID, threshold, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	h.usage.Log(r.Context(), usage.Entry{
		OrgID:    id.OrgID,
		UserID:   id.UserID,
		Action:   usage.ActionSearch,
		Metadata: map[string]any{"results": len(results)},
	})
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"threshold": threshold,
		"count":     len(results),
		"results":   searchResultsJSON(results),
	})
}

type searchResultJSON struct {
	PhotoID    string  `json:"photo_id"`
	SourcePath string  `json:"source_path"`
	PhotoDate  string  `json:"photo_date,omitempty"`
	Similarity float64 `json:"similarity"`
}

func searchResultsJSON(results []facestore.SearchResult) []searchResultJSON {
	out := make([]searchResultJSON, len(results))
	for i, r := range results {
		out[i] = searchResultJSON{
			PhotoID:    r.Record.ID,
			SourcePath: r.Record.SourcePath,
			PhotoDate:  r.Record.PhotoDate,
			Similarity: r.Similarity,
		}
	}
	return out
}
