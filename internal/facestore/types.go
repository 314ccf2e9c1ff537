package facestore

import (
	"context"
	"errors"
	"time"
)

// EmbeddingDim is the dimensionality of face embeddings produced by the
// extractor model (GhostFaceNet).
const EmbeddingDim = 512

// ErrStoreUnavailable reports that the backing store could not be reached.
// Callers use it to distinguish "no matches" from "could not check".
var ErrStoreUnavailable = errors.New("face store unavailable")

// ErrNotFound reports that a requested record does not exist within the
// caller's tenant.
var ErrNotFound = errors.New("record not found")

// FaceRecord is one detected face persisted in the store.
type FaceRecord struct {
	ID         string
	Vector     []float32
	SourcePath string
	TenantID   string // empty means ungrouped/legacy data
	PhotoDate  string // YYYY-MM-DD, best effort
	SizeBytes  int64
	CreatedAt  time.Time
}

// SearchResult pairs a stored record with its similarity to the query,
// normalized to [0, 1] where higher is better.
type SearchResult struct {
	Record     FaceRecord
	Similarity float64
}

// Stats describes the store's current state.
type Stats struct {
	TotalFaces  int  `json:"total_faces"`
	TableExists bool `json:"table_exists"`
}

// Store is the engine-agnostic face storage contract. Both the embedded
// HNSW backend and the pgvector backend implement it with identical
// similarity, ordering, and tenant-scoping semantics.
type Store interface {
	// InsertBatch persists the given records, assigning IDs and creation
	// timestamps where absent. Records with a missing or mis-dimensioned
	// vector are skipped; the rest proceed. Returns the number persisted.
	InsertBatch(ctx context.Context, records []FaceRecord) (int, error)

	// Search returns records similar to the query vector, restricted to
	// tenantID when non-empty, filtered by threshold (inclusive) and
	// sorted by descending similarity. At most limit results.
	Search(ctx context.Context, query []float32, tenantID string, threshold float64, limit int) ([]SearchResult, error)

	// Stats returns record counts. It degrades to a zero-state rather
	// than failing when the backend is unreachable.
	Stats(ctx context.Context) (Stats, error)
}

// ValidVector reports whether a vector may be inserted: non-empty and of
// the configured dimension.
func ValidVector(v []float32, dim int) bool {
	return len(v) == dim
}
