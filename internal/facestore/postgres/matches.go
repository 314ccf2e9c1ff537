package postgres

import (
	"context"
	"fmt"

	"github.com/LeulTew/aura/internal/match"
)

// MatchRepository persists photo-to-user match links.
type MatchRepository struct {
	pool *Pool
}

var _ match.Writer = (*MatchRepository)(nil)

// NewMatchRepository creates a match repository backed by the given pool.
func NewMatchRepository(pool *Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

// UpsertBatch records matches idempotently. Re-matching the same photo
// and user updates the stored similarity instead of duplicating the row.
func (r *MatchRepository) UpsertBatch(ctx context.Context, links []match.Link) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO photo_matches (photo_id, user_id, similarity)
		VALUES ($1, $2, $3)
		ON CONFLICT (photo_id, user_id)
		DO UPDATE SET similarity = EXCLUDED.similarity
	`)
	if err != nil {
		return 0, storeErr(err)
	}
	defer stmt.Close()

	for _, l := range links {
		if _, err := stmt.ExecContext(ctx, l.PhotoID, l.UserID, l.Similarity); err != nil {
			return 0, storeErr(fmt.Errorf("upserting match %s/%s: %w", l.PhotoID, l.UserID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr(err)
	}
	return len(links), nil
}

// ListPhotoIDs returns the photo IDs matched to a user, best match first.
func (r *MatchRepository) ListPhotoIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT photo_id FROM photo_matches
		WHERE user_id = $1
		ORDER BY similarity DESC
	`, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
