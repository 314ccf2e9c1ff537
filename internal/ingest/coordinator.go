// Package ingest walks photo directories, extracts face embeddings, and
// writes them to the face store. One bad file never aborts a scan.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/LeulTew/aura/internal/extractor"
	"github.com/LeulTew/aura/internal/facestore"
	"github.com/LeulTew/aura/internal/usage"
)

// FaceSource extracts face embeddings from image bytes.
type FaceSource interface {
	Detect(ctx context.Context, imageData []byte, mode extractor.Mode) ([]extractor.Detection, error)
}

// StorageSink receives per-tenant storage accounting updates.
type StorageSink interface {
	AddStorageUsed(ctx context.Context, orgID string, delta int64) error
}

// Summary reports the outcome of a scan.
type Summary struct {
	Processed  int      `json:"processed"`
	Skipped    int      `json:"skipped"`
	FacesFound int      `json:"faces_found"`
	Inserted   int      `json:"inserted"`
	Bytes      int64    `json:"bytes"`
	Errors     []string `json:"errors,omitempty"`
}

// Coordinator runs the ingest pipeline.
type Coordinator struct {
	faces   FaceSource
	store   facestore.Store
	storage StorageSink
	usage   usage.Logger
	logger  *slog.Logger

	// Progress is invoked after each file during a directory scan.
	Progress func(path string, processed, total int)
}

// NewCoordinator creates an ingest coordinator. The storage sink and
// usage logger may be nil.
func NewCoordinator(faces FaceSource, store facestore.Store, storage StorageSink, usageLog usage.Logger, logger *slog.Logger) *Coordinator {
	if usageLog == nil {
		usageLog = usage.NopLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{faces: faces, store: store, storage: storage, usage: usageLog, logger: logger}
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// IsImageFile reports whether the path has a supported image extension.
func IsImageFile(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// IngestImage extracts faces from one image and stores them under the
// tenant. A zero-face image succeeds with no records. Returns the number
// of faces stored.
func (c *Coordinator) IngestImage(ctx context.Context, tenantID, sourcePath string, imageData []byte, mode extractor.Mode) (int, error) {
	faces, err := c.faces.Detect(ctx, imageData, mode)
	if errors.Is(err, extractor.ErrNoFaceDetected) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("extracting faces from %s: %w", sourcePath, err)
	}

	date := photoDate(sourcePath)
	records := make([]facestore.FaceRecord, len(faces))
	for i, f := range faces {
		records[i] = facestore.FaceRecord{
			Vector:     f.Vector,
			SourcePath: sourcePath,
			TenantID:   tenantID,
			PhotoDate:  date,
			SizeBytes:  int64(len(imageData)),
		}
	}

	inserted, err := c.store.InsertBatch(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("storing faces from %s: %w", sourcePath, err)
	}

	if c.storage != nil && inserted > 0 {
		if err := c.storage.AddStorageUsed(ctx, tenantID, int64(len(imageData))); err != nil {
			c.logger.Warn("storage accounting failed", "tenant", tenantID, "error", err)
		}
	}
	return inserted, nil
}

// ScanDirectory walks dir recursively and ingests every supported image
// for the tenant. Files that fail to read or extract are counted as
// skipped and recorded in the summary; the scan continues.
func (c *Coordinator) ScanDirectory(ctx context.Context, tenantID, dir string, mode extractor.Mode) (*Summary, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	summary := &Summary{}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := c.ingestFile(ctx, tenantID, path, mode, summary); err != nil {
			// A down store fails the whole scan; a bad file does not.
			if errors.Is(err, facestore.ErrStoreUnavailable) {
				return summary, err
			}
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", path, err))
			c.logger.Warn("skipping file", "path", path, "error", err)
		}

		if c.Progress != nil {
			c.Progress(path, i+1, len(files))
		}
	}

	c.usage.Log(ctx, usage.Entry{
		OrgID:  tenantID,
		Action: usage.ActionScan,
		Bytes:  summary.Bytes,
		Metadata: map[string]any{
			"processed": summary.Processed,
			"skipped":   summary.Skipped,
			"faces":     summary.FacesFound,
		},
	})
	return summary, nil
}

func (c *Coordinator) ingestFile(ctx context.Context, tenantID, path string, mode extractor.Mode, summary *Summary) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	faces, err := c.faces.Detect(ctx, data, mode)
	switch {
	case errors.Is(err, extractor.ErrNoFaceDetected):
		summary.Processed++
		return nil
	case err != nil:
		return err
	}

	date := photoDate(path)
	records := make([]facestore.FaceRecord, len(faces))
	for i, f := range faces {
		records[i] = facestore.FaceRecord{
			Vector:     f.Vector,
			SourcePath: path,
			TenantID:   tenantID,
			PhotoDate:  date,
			SizeBytes:  int64(len(data)),
		}
	}

	inserted, err := c.store.InsertBatch(ctx, records)
	if err != nil {
		return err
	}

	summary.Processed++
	summary.FacesFound += len(faces)
	summary.Inserted += inserted
	summary.Bytes += int64(len(data))

	if c.storage != nil && inserted > 0 {
		if err := c.storage.AddStorageUsed(ctx, tenantID, int64(len(data))); err != nil {
			c.logger.Warn("storage accounting failed", "tenant", tenantID, "error", err)
		}
	}
	return nil
}
