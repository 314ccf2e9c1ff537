package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/LeulTew/aura/internal/extractor"
	"github.com/LeulTew/aura/internal/facestore"
)

// fakeFaceSource returns canned detections, failing for paths whose
// content matches failOn.
type fakeFaceSource struct {
	faces  int
	failOn string
}

func (f *fakeFaceSource) Detect(_ context.Context, imageData []byte, _ extractor.Mode) ([]extractor.Detection, error) {
	if f.failOn != "" && string(imageData) == f.failOn {
		return nil, extractor.ErrDecode
	}
	if f.faces == 0 {
		return nil, extractor.ErrNoFaceDetected
	}
	out := make([]extractor.Detection, f.faces)
	for i := range out {
		v := make([]float32, facestore.EmbeddingDim)
		v[i%facestore.EmbeddingDim] = 1
		out[i] = extractor.Detection{Vector: v, BBox: []float64{0, 0, 10, 10}}
	}
	return out, nil
}

func writeFiles(t *testing.T, dir string, names map[string]string) {
	t.Helper()
	for name, content := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

func TestScanDirectoryIngestsImages(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"a.jpg":     "photo-a",
		"b.jpeg":    "photo-b",
		"c.png":     "photo-c",
		"notes.txt": "not a photo",
	})

	store := facestore.NewLocal("")
	c := NewCoordinator(&fakeFaceSource{faces: 1}, store, nil, nil, nil)

	summary, err := c.ScanDirectory(context.Background(), "org-1", dir, extractor.AllFaces)
	if err != nil {
		t.Fatalf("ScanDirectory failed: %v", err)
	}
	if summary.Processed != 3 {
		t.Errorf("expected 3 processed, got %d", summary.Processed)
	}
	if summary.Skipped != 0 {
		t.Errorf("expected 0 skipped, got %d", summary.Skipped)
	}
	if summary.Inserted != 3 {
		t.Errorf("expected 3 inserted, got %d", summary.Inserted)
	}
	if store.Count() != 3 {
		t.Errorf("expected 3 records in store, got %d", store.Count())
	}
}

func TestScanDirectoryIsolatesBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"ok1.jpg": "photo-1",
		"bad.jpg": "corrupt",
		"ok2.jpg": "photo-2",
	})

	store := facestore.NewLocal("")
	c := NewCoordinator(&fakeFaceSource{faces: 1, failOn: "corrupt"}, store, nil, nil, nil)

	summary, err := c.ScanDirectory(context.Background(), "org-1", dir, extractor.AllFaces)
	if err != nil {
		t.Fatalf("ScanDirectory failed: %v", err)
	}
	if summary.Processed != 2 {
		t.Errorf("expected 2 processed, got %d", summary.Processed)
	}
	if summary.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", summary.Skipped)
	}
	if len(summary.Errors) != 1 {
		t.Errorf("expected 1 recorded error, got %d", len(summary.Errors))
	}
	if store.Count() != 2 {
		t.Errorf("expected 2 records in store, got %d", store.Count())
	}
}

func TestScanDirectoryZeroFaceImagesSucceed(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"scenery.jpg": "no faces here"})

	store := facestore.NewLocal("")
	c := NewCoordinator(&fakeFaceSource{faces: 0}, store, nil, nil, nil)

	summary, err := c.ScanDirectory(context.Background(), "org-1", dir, extractor.AllFaces)
	if err != nil {
		t.Fatalf("ScanDirectory failed: %v", err)
	}
	if summary.Processed != 1 || summary.Skipped != 0 {
		t.Errorf("expected zero-face image to count as processed, got %+v", summary)
	}
	if store.Count() != 0 {
		t.Errorf("expected empty store, got %d records", store.Count())
	}
}

type downStore struct{}

func (downStore) InsertBatch(context.Context, []facestore.FaceRecord) (int, error) {
	return 0, facestore.ErrStoreUnavailable
}
func (downStore) Search(context.Context, []float32, string, float64, int) ([]facestore.SearchResult, error) {
	return nil, facestore.ErrStoreUnavailable
}
func (downStore) Stats(context.Context) (facestore.Stats, error) {
	return facestore.Stats{}, nil
}

func TestScanDirectoryAbortsWhenStoreDown(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.jpg": "photo-a", "b.jpg": "photo-b"})

	c := NewCoordinator(&fakeFaceSource{faces: 1}, downStore{}, nil, nil, nil)

	_, err := c.ScanDirectory(context.Background(), "org-1", dir, extractor.AllFaces)
	if !errors.Is(err, facestore.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestIngestImageSingle(t *testing.T) {
	store := facestore.NewLocal("")
	c := NewCoordinator(&fakeFaceSource{faces: 2}, store, nil, nil, nil)

	n, err := c.IngestImage(context.Background(), "org-1", "upload.jpg", []byte("group shot"), extractor.AllFaces)
	if err != nil {
		t.Fatalf("IngestImage failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 faces stored, got %d", n)
	}
}

func TestIsImageFile(t *testing.T) {
	for _, path := range []string{"a.jpg", "b.JPEG", "c.png", "d.WebP"} {
		if !IsImageFile(path) {
			t.Errorf("expected %s to be an image", path)
		}
	}
	for _, path := range []string{"a.txt", "b.gif", "c", "d.jpg.bak"} {
		if IsImageFile(path) {
			t.Errorf("expected %s to be rejected", path)
		}
	}
}
