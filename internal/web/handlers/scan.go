package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/LeulTew/aura/internal/extractor"
	"github.com/LeulTew/aura/internal/ingest"
	"github.com/LeulTew/aura/internal/web/middleware"
)

// ScanHandler runs directory scans for admins.
type ScanHandler struct {
	ingest *ingest.Coordinator
	logger *slog.Logger
}

// NewScanHandler creates a scan handler.
func NewScanHandler(coordinator *ingest.Coordinator, logger *slog.Logger) *ScanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanHandler{ingest: coordinator, logger: logger}
}

type scanRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
}

// Scan walks a server-side directory and indexes every supported image
// for the caller's organization. Runs synchronously; large directories
// should use the CLI instead.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentityFromContext(r.Context())

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	info, err := os.Stat(req.Path)
	if err != nil || !info.IsDir() {
		respondError(w, http.StatusBadRequest, "path is not a readable directory")
		return
	}

	mode := extractor.AllFaces
	if req.Mode == "largest" {
		mode = extractor.LargestOnly
	}

	h.logger.Info("scan started", "org", id.OrgID, "path", sanitizeForLog(req.Path))
	summary, err := h.ingest.ScanDirectory(r.Context(), id.OrgID, req.Path, mode)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*ingest.Summary
	}{true, summary})
}
