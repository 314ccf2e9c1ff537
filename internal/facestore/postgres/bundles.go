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
)

// Bundle is a named, shareable collection of photos within a tenant.
type Bundle struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	PhotoIDs  []string  `json:"photo_ids"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BundleRepository manages photo bundles.
type BundleRepository struct {
	pool *Pool
}

// NewBundleRepository creates a bundle repository backed by the given pool.
func NewBundleRepository(pool *Pool) *BundleRepository {
	return &BundleRepository{pool: pool}
}

// Create inserts a new bundle and returns it.
func (r *BundleRepository) Create(ctx context.Context, orgID, name, createdBy string, photoIDs []string) (*Bundle, error) {
	b := &Bundle{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Name:      name,
		PhotoIDs:  photoIDs,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	var createdBySQL sql.NullString
	if createdBy != "" {
		createdBySQL = sql.NullString{String: createdBy, Valid: true}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bundles (id, org_id, name, photo_ids, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, b.ID, b.OrgID, b.Name, pq.Array(b.PhotoIDs), createdBySQL, b.CreatedAt)
	if err != nil {
		return nil, storeErr(fmt.Errorf("creating bundle %s: %w", name, err))
	}
	return b, nil
}

// Get returns a bundle scoped to a tenant.
func (r *BundleRepository) Get(ctx context.Context, orgID, bundleID string) (*Bundle, error) {
	var (
		b         Bundle
		photoIDs  pq.StringArray
		createdBy sql.NullString
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_id, name, photo_ids, created_by, created_at
		FROM bundles
		WHERE id = $1 AND org_id = $2
	`, bundleID, orgID).Scan(&b.ID, &b.OrgID, &b.Name, &photoIDs, &createdBy, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, facestore.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	b.PhotoIDs = photoIDs
	b.CreatedBy = createdBy.String
	return &b, nil
}

// ListByOrg returns a tenant's bundles, newest first.
func (r *BundleRepository) ListByOrg(ctx context.Context, orgID string) ([]Bundle, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, name, photo_ids, created_by, created_at
		FROM bundles
		WHERE org_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var bundles []Bundle
	for rows.Next() {
		var (
			b         Bundle
			photoIDs  pq.StringArray
			createdBy sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.OrgID, &b.Name, &photoIDs, &createdBy, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning bundle: %w", err)
		}
		b.PhotoIDs = photoIDs
		b.CreatedBy = createdBy.String
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

// Delete removes a bundle scoped to a tenant.
func (r *BundleRepository) Delete(ctx context.Context, orgID, bundleID string) error {
	res, err := r.pool.Exec(ctx,
		`DELETE FROM bundles WHERE id = $1 AND org_id = $2`,
		bundleID, orgID,
	)
	if err != nil {
		return storeErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return facestore.ErrNotFound
	}
	return nil
}
