package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/LeulTew/aura/internal/facestore"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Organization is a tenant. All photos, profiles, and bundles belong to
// exactly one organization.
type Organization struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Slug             string `json:"slug"`
	Plan             string `json:"plan"`
	StorageUsedBytes int64  `json:"storage_used_bytes"`
}

// OrgRepository manages organizations.
type OrgRepository struct {
	pool *Pool
}

// NewOrgRepository creates an organization repository backed by the given pool.
func NewOrgRepository(pool *Pool) *OrgRepository {
	return &OrgRepository{pool: pool}
}

// Slugify derives a URL-safe slug from an organization name. Diacritics
// are stripped, everything outside [a-z0-9] becomes a hyphen.
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, name)
	if err != nil {
		ascii = name
	}

	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(ascii) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Create inserts a new organization and returns it. An empty slug is
// derived from the name.
func (r *OrgRepository) Create(ctx context.Context, name, slug, plan string) (*Organization, error) {
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return nil, errors.New("organization name yields an empty slug")
	}
	if plan == "" {
		plan = "free"
	}

	org := &Organization{ID: uuid.NewString(), Name: name, Slug: slug, Plan: plan}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO organizations (id, name, slug, plan) VALUES ($1, $2, $3, $4)`,
		org.ID, org.Name, org.Slug, org.Plan,
	)
	if err != nil {
		return nil, storeErr(fmt.Errorf("creating organization %s: %w", slug, err))
	}
	return org, nil
}

// GetBySlug returns the organization with the given slug.
func (r *OrgRepository) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	return r.get(ctx, `WHERE slug = $1`, slug)
}

// GetByID returns the organization with the given ID.
func (r *OrgRepository) GetByID(ctx context.Context, id string) (*Organization, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

func (r *OrgRepository) get(ctx context.Context, where string, arg any) (*Organization, error) {
	var org Organization
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, slug, plan, storage_used_bytes FROM organizations `+where,
		arg,
	).Scan(&org.ID, &org.Name, &org.Slug, &org.Plan, &org.StorageUsedBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, facestore.ErrNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return &org, nil
}

// List returns all organizations ordered by name.
func (r *OrgRepository) List(ctx context.Context) ([]Organization, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, slug, plan, storage_used_bytes FROM organizations ORDER BY name`,
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Slug, &org.Plan, &org.StorageUsedBytes); err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// AddStorageUsed adjusts the tenant's storage accounting by delta bytes.
func (r *OrgRepository) AddStorageUsed(ctx context.Context, orgID string, delta int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE organizations SET storage_used_bytes = storage_used_bytes + $2 WHERE id = $1`,
		orgID, delta,
	)
	return storeErr(err)
}

// PlatformStats aggregates per-tenant counts for the superadmin overview.
type PlatformStats struct {
	TotalOrgs     int   `json:"total_orgs"`
	TotalUsers    int   `json:"total_users"`
	TotalPhotos   int   `json:"total_photos"`
	TotalStorage  int64 `json:"total_storage_bytes"`
	TotalMatches  int   `json:"total_matches"`
	TotalBundles  int   `json:"total_bundles"`
	UsageLastWeek int   `json:"usage_last_week"`
}

// GetPlatformStats returns platform-wide aggregates across all tenants.
func (r *OrgRepository) GetPlatformStats(ctx context.Context) (*PlatformStats, error) {
	var s PlatformStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM organizations),
			(SELECT COUNT(*) FROM profiles),
			(SELECT COUNT(*) FROM photos),
			(SELECT COALESCE(SUM(storage_used_bytes), 0) FROM organizations),
			(SELECT COUNT(*) FROM photo_matches),
			(SELECT COUNT(*) FROM bundles),
			(SELECT COUNT(*) FROM usage_log WHERE created_at > NOW() - INTERVAL '7 days')
	`).Scan(&s.TotalOrgs, &s.TotalUsers, &s.TotalPhotos, &s.TotalStorage, &s.TotalMatches, &s.TotalBundles, &s.UsageLastWeek)
	if err != nil {
		return nil, storeErr(err)
	}
	return &s, nil
}
