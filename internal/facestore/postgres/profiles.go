package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LeulTew/aura/internal/facestore"
	"github.com/LeulTew/aura/internal/match"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Profile is a user account within an organization.
type Profile struct {
	ID           string `json:"id"`
	OrgID        string `json:"org_id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"`
}

// ProfileRepository manages user profiles and their reference embeddings.
type ProfileRepository struct {
	pool *Pool
}

var _ match.ReferenceSource = (*ProfileRepository)(nil)

// NewProfileRepository creates a profile repository backed by the given pool.
func NewProfileRepository(pool *Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetByEmail returns the profile for an email within an organization.
func (r *ProfileRepository) GetByEmail(ctx context.Context, orgID, email string) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_id, email, full_name, role, password_hash
		FROM profiles
		WHERE org_id = $1 AND LOWER(email) = LOWER($2)
	`, orgID, email).Scan(&p.ID, &p.OrgID, &p.Email, &p.FullName, &p.Role, &p.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, facestore.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &p, nil
}

// GetByID returns the profile with the given ID.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_id, email, full_name, role, password_hash
		FROM profiles
		WHERE id = $1
	`, id).Scan(&p.ID, &p.OrgID, &p.Email, &p.FullName, &p.Role, &p.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, facestore.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &p, nil
}

// Create inserts a new profile and returns its ID.
func (r *ProfileRepository) Create(ctx context.Context, p *Profile) (string, error) {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO profiles (id, org_id, email, full_name, role, password_hash)
		VALUES ($1, $2, LOWER($3), $4, $5, $6)
	`, id, p.OrgID, p.Email, p.FullName, p.Role, p.PasswordHash)
	if err != nil {
		return "", storeErr(fmt.Errorf("creating profile %s: %w", p.Email, err))
	}
	return id, nil
}

// ReferenceEmbedding returns the user's enrolled face embedding.
func (r *ProfileRepository) ReferenceEmbedding(ctx context.Context, userID string) ([]float32, error) {
	var vec pgvector.Vector
	err := r.pool.QueryRow(ctx,
		`SELECT reference_embedding FROM profiles WHERE id = $1 AND reference_embedding IS NOT NULL`,
		userID,
	).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, match.ErrReferenceNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return vec.Slice(), nil
}

// SetReferenceEmbedding enrolls or replaces a user's face embedding.
func (r *ProfileRepository) SetReferenceEmbedding(ctx context.Context, userID string, vector []float32) error {
	res, err := r.pool.Exec(ctx,
		`UPDATE profiles SET reference_embedding = $2 WHERE id = $1`,
		userID, pgvector.NewVector(vector),
	)
	if err != nil {
		return storeErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return facestore.ErrNotFound
	}
	return nil
}

// FindByEmbedding returns the profile in an organization whose reference
// embedding is closest to the query, provided similarity meets the
// threshold. Used for face login.
func (r *ProfileRepository) FindByEmbedding(ctx context.Context, orgID string, query []float32, threshold float64) (*Profile, float64, error) {
	var (
		p   Profile
		sim float64
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_id, email, full_name, role, password_hash,
		       1 - (reference_embedding <=> $2::vector) AS similarity
		FROM profiles
		WHERE org_id = $1
		  AND reference_embedding IS NOT NULL
		  AND 1 - (reference_embedding <=> $2::vector) >= $3
		ORDER BY reference_embedding <=> $2::vector
		LIMIT 1
	`, orgID, pgvector.NewVector(query), threshold).
		Scan(&p.ID, &p.OrgID, &p.Email, &p.FullName, &p.Role, &p.PasswordHash, &sim)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, facestore.ErrNotFound
	}
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return &p, sim, nil
}

// ListAll returns every profile across all organizations.
func (r *ProfileRepository) ListAll(ctx context.Context) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, email, full_name, role, password_hash
		FROM profiles
		ORDER BY org_id, email
	`)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Email, &p.FullName, &p.Role, &p.PasswordHash); err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// ListByOrg returns all profiles in an organization.
func (r *ProfileRepository) ListByOrg(ctx context.Context, orgID string) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, email, full_name, role, password_hash
		FROM profiles
		WHERE org_id = $1
		ORDER BY email
	`, orgID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Email, &p.FullName, &p.Role, &p.PasswordHash); err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
