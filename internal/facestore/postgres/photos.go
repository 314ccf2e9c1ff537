package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/LeulTew/aura/internal/facestore"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PhotoRepository stores face embeddings in PostgreSQL with pgvector.
type PhotoRepository struct {
	pool *Pool
	dim  int
}

var _ facestore.Store = (*PhotoRepository)(nil)

// NewPhotoRepository creates a photo repository backed by the given pool.
func NewPhotoRepository(pool *Pool, dim int) *PhotoRepository {
	if dim <= 0 {
		dim = facestore.EmbeddingDim
	}
	return &PhotoRepository{pool: pool, dim: dim}
}

// InsertBatch inserts face records in a single transaction. Records with
// invalid vectors are skipped. Returns the number of rows inserted.
func (r *PhotoRepository) InsertBatch(ctx context.Context, records []facestore.FaceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO photos (id, org_id, source_path, embedding, photo_date, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return 0, storeErr(err)
	}
	defer stmt.Close()

	inserted := 0
	now := time.Now().UTC()
	for _, rec := range records {
		if !facestore.ValidVector(rec.Vector, r.dim) {
			continue
		}
		id := rec.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := rec.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.ExecContext(ctx,
			id, orgValue(rec.TenantID), rec.SourcePath,
			pgvector.NewVector(rec.Vector), rec.PhotoDate, rec.SizeBytes, created,
		); err != nil {
			return 0, storeErr(fmt.Errorf("inserting photo %s: %w", rec.SourcePath, err))
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr(err)
	}
	return inserted, nil
}

// Search finds faces within a tenant whose cosine similarity to the query
// meets the threshold, ordered by similarity descending.
func (r *PhotoRepository) Search(ctx context.Context, query []float32, tenantID string, threshold float64, limit int) ([]facestore.SearchResult, error) {
	if !facestore.ValidVector(query, r.dim) {
		return nil, fmt.Errorf("query vector must have %d dimensions", r.dim)
	}
	if limit <= 0 {
		limit = facestore.DefaultSearchLimit
	}

	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Rollback()

	// Raise the candidate pool so threshold filtering does not starve
	// the result set.
	efSearch := limit * facestore.HNSWSearchMultiplier
	if efSearch < facestore.HNSWMinSearchK {
		efSearch = facestore.HNSWMinSearchK
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearch)); err != nil {
		return nil, storeErr(err)
	}

	// An empty tenant searches platform-wide, matching the embedded
	// backend's scope semantics.
	q := `
		SELECT id, source_path, COALESCE(org_id::TEXT, ''), photo_date, size_bytes, created_at,
		       1 - (embedding <=> $1::vector) AS similarity
		FROM photos
		WHERE 1 - (embedding <=> $1::vector) >= $2`
	args := []any{pgvector.NewVector(query), threshold}
	if tenantID != "" {
		q += ` AND org_id = $3`
		args = append(args, tenantID)
	}
	q += fmt.Sprintf(`
		ORDER BY embedding <=> $1::vector
		LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var results []facestore.SearchResult
	for rows.Next() {
		var (
			rec facestore.FaceRecord
			sim float64
		)
		if err := rows.Scan(&rec.ID, &rec.SourcePath, &rec.TenantID, &rec.PhotoDate, &rec.SizeBytes, &rec.CreatedAt, &sim); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, facestore.SearchResult{Record: rec, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeErr(err)
	}
	return results, nil
}

// Stats reports the total face count and table presence.
func (r *PhotoRepository) Stats(ctx context.Context) (facestore.Stats, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = 'photos'
		)
	`).Scan(&exists)
	if err != nil {
		return facestore.Stats{}, storeErr(err)
	}
	if !exists {
		return facestore.Stats{TableExists: false}, nil
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM photos`).Scan(&total); err != nil {
		return facestore.Stats{}, storeErr(err)
	}
	return facestore.Stats{TotalFaces: total, TableExists: true}, nil
}

// GetPath returns the source path of a photo scoped to a tenant.
func (r *PhotoRepository) GetPath(ctx context.Context, tenantID, photoID string) (string, error) {
	var path string
	err := r.pool.QueryRow(ctx,
		`SELECT source_path FROM photos WHERE id = $1 AND org_id = $2`,
		photoID, tenantID,
	).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", facestore.ErrNotFound
	}
	if err != nil {
		return "", storeErr(err)
	}
	return path, nil
}

// ListByIDs returns records for the given photo IDs within a tenant,
// newest first.
func (r *PhotoRepository) ListByIDs(ctx context.Context, tenantID string, ids []string) ([]facestore.FaceRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, source_path, org_id, photo_date, size_bytes, created_at
		FROM photos
		WHERE org_id = $1 AND id = ANY($2)
		ORDER BY photo_date DESC, created_at DESC
	`, tenantID, pq.Array(ids))
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var records []facestore.FaceRecord
	for rows.Next() {
		var rec facestore.FaceRecord
		if err := rows.Scan(&rec.ID, &rec.SourcePath, &rec.TenantID, &rec.PhotoDate, &rec.SizeBytes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning photo: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListFolders returns the distinct directories containing photos for a tenant.
func (r *PhotoRepository) ListFolders(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT regexp_replace(source_path, '/[^/]+$', '')
		FROM photos
		WHERE org_id = $1
		ORDER BY 1
	`, tenantID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var folders []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("scanning folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// CountByTenant returns the face count for a single tenant.
func (r *PhotoRepository) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM photos WHERE org_id = $1`, tenantID).Scan(&n); err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

// orgValue maps the empty tenant to NULL so ungrouped photos satisfy the
// uuid column.
func orgValue(tenantID string) any {
	if tenantID == "" {
		return nil
	}
	return tenantID
}

// storeErr marks connectivity failures so callers can distinguish a down
// store from an empty result.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", facestore.ErrStoreUnavailable, err)
}
