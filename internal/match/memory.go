package match

import (
	"context"
	"sync"
)

// MemoryWriter keeps match links in memory, keyed by photo and user.
// It backs the embedded store mode and tests.
type MemoryWriter struct {
	mu    sync.RWMutex
	links map[linkKey]float64
}

type linkKey struct {
	photoID string
	userID  string
}

var _ Writer = (*MemoryWriter)(nil)

// NewMemoryWriter creates an empty in-memory match writer.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{links: make(map[linkKey]float64)}
}

// UpsertBatch records links, overwriting similarities on repeats.
func (w *MemoryWriter) UpsertBatch(_ context.Context, links []Link) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, l := range links {
		w.links[linkKey{l.PhotoID, l.UserID}] = l.Similarity
	}
	return len(links), nil
}

// Count returns the number of distinct photo/user links.
func (w *MemoryWriter) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.links)
}

// Similarity returns the stored similarity for a link.
func (w *MemoryWriter) Similarity(photoID, userID string) (float64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.links[linkKey{photoID, userID}]
	return s, ok
}

// PhotoIDs returns the photo IDs linked to a user.
func (w *MemoryWriter) PhotoIDs(userID string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var ids []string
	for k := range w.links {
		if k.userID == userID {
			ids = append(ids, k.photoID)
		}
	}
	return ids
}
