package facestore

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/google/uuid"
)

// localMetadata stores metadata for validating cached snapshots.
type localMetadata struct {
	RecordCount int       `json:"record_count"`
	SavedAt     time.Time `json:"saved_at"`
	Version     int       `json:"version"`
}

const localSnapshotVersion = 1

// Local is the embedded store backend: records held in memory with an
// HNSW graph for approximate nearest-neighbor search, optionally
// snapshotted to disk. Safe for concurrent use.
type Local struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[string]
	records map[string]*FaceRecord
	path    string // snapshot path; empty means in-memory only
}

// NewLocal creates an empty embedded store. If path is non-empty, Load
// and Save use it for snapshot persistence.
func NewLocal(path string) *Local {
	return &Local{
		records: make(map[string]*FaceRecord),
		path:    path,
	}
}

func newFaceGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// InsertBatch adds records to the store. Records without a valid vector
// of the configured dimension are skipped; the rest proceed.
func (l *Local) InsertBatch(ctx context.Context, records []FaceRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.graph == nil {
		l.graph = newFaceGraph()
	}

	inserted := 0
	for i := range records {
		rec := records[i]
		if !ValidVector(rec.Vector, EmbeddingDim) {
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}

		l.graph.Add(hnsw.MakeNode(rec.ID, rec.Vector))
		l.records[rec.ID] = &rec
		inserted++
	}

	return inserted, nil
}

// Search finds records similar to the query, scoped to tenantID when
// non-empty, filtered by the inclusive threshold and sorted by
// descending similarity.
func (l *Local) Search(ctx context.Context, query []float32, tenantID string, threshold float64, limit int) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.graph == nil || len(l.records) == 0 {
		return nil, nil
	}

	// Request more candidates than needed so enough survive tenant and
	// threshold filtering.
	searchK := max(limit*HNSWSearchMultiplier, HNSWMinSearchK)

	neighbors := l.graph.Search(query, searchK)

	results := make([]SearchResult, 0, limit)
	for _, n := range neighbors {
		rec := l.records[n.Key]
		if rec == nil {
			continue // removed after indexing
		}
		if tenantID != "" && rec.TenantID != tenantID {
			continue
		}
		sim := Similarity(query, rec.Vector)
		if sim < threshold {
			continue
		}
		results = append(results, SearchResult{Record: *rec, Similarity: sim})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Stats returns the record count. Never fails.
func (l *Local) Stats(ctx context.Context) (Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		TotalFaces:  len(l.records),
		TableExists: len(l.records) > 0,
	}, nil
}

// Count returns the number of stored records.
func (l *Local) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Clear drops all records. Administrative teardown only.
func (l *Local) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.graph = nil
	l.records = make(map[string]*FaceRecord)
}

// Save writes a snapshot of all records to the configured path, with a
// sidecar metadata file. No-op when no path is configured.
func (l *Local) Save() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.path == "" {
		return nil
	}

	if len(l.records) == 0 {
		// Remove existing files if the store is empty (best-effort cleanup).
		_ = os.Remove(l.path)
		_ = os.Remove(l.path + ".meta")
		return nil
	}

	records := make([]FaceRecord, 0, len(l.records))
	for _, rec := range l.records {
		records = append(records, *rec)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := os.WriteFile(l.path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	meta := localMetadata{
		RecordCount: len(records),
		SavedAt:     time.Now(),
		Version:     localSnapshotVersion,
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal snapshot metadata: %w", err)
	}
	if err := os.WriteFile(l.path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("write snapshot metadata: %w", err)
	}

	return nil
}

// Load restores records from the configured snapshot path and rebuilds
// the HNSW graph. A missing snapshot file leaves the store empty.
func (l *Local) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path == "" {
		return nil
	}

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil // no snapshot yet, start empty
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	var records []FaceRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&records); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	graph := newFaceGraph()
	l.records = make(map[string]*FaceRecord, len(records))
	for i := range records {
		rec := &records[i]
		if !ValidVector(rec.Vector, EmbeddingDim) {
			continue
		}
		graph.Add(hnsw.MakeNode(rec.ID, rec.Vector))
		l.records[rec.ID] = rec
	}
	l.graph = graph

	return nil
}

// Verify interface compliance.
var _ Store = (*Local)(nil)
