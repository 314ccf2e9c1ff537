package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/LeulTew/aura/internal/extractor"
	"github.com/LeulTew/aura/internal/facestore"
	"github.com/LeulTew/aura/internal/match"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxUploadBytes caps image uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"success": false, "error": message})
}

// respondStoreError maps domain errors to HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, facestore.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, match.ErrReferenceNotFound):
		respondError(w, http.StatusNotFound, "no reference embedding")
	case errors.Is(err, facestore.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "face store unavailable")
	case errors.Is(err, extractor.ErrNoFaceDetected):
		respondError(w, http.StatusUnprocessableEntity, "no face detected")
	case errors.Is(err, extractor.ErrDecode):
		respondError(w, http.StatusBadRequest, "image could not be decoded")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// readUpload extracts the uploaded image from a multipart form. The file
// field is named "file".
func readUpload(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, err
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
