//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/LeulTew/aura/internal/config"
	"github.com/LeulTew/aura/internal/facestore"
	"github.com/LeulTew/aura/internal/match"
	"github.com/LeulTew/aura/internal/usage"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return pool, func() {
		pool.Close()
		container.Terminate(ctx)
	}
}

func basisVector(hot int) []float32 {
	v := make([]float32, facestore.EmbeddingDim)
	v[hot] = 1
	return v
}

func createOrg(t *testing.T, pool *Pool, name string) *Organization {
	t.Helper()
	org, err := NewOrgRepository(pool).Create(context.Background(), name, "", "free")
	if err != nil {
		t.Fatalf("creating organization %s: %v", name, err)
	}
	return org
}

func TestMigrateIsIdempotent(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()

	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("second migration run failed: %v", err)
	}
}

func TestPhotoInsertAndSearch(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	org := createOrg(t, pool, "Acme Corp")
	repo := NewPhotoRepository(pool, facestore.EmbeddingDim)

	nearDup := make([]float32, facestore.EmbeddingDim)
	nearDup[0] = 0.99
	nearDup[1] = 0.01

	n, err := repo.InsertBatch(ctx, []facestore.FaceRecord{
		{Vector: basisVector(0), SourcePath: "exact.jpg", TenantID: org.ID, PhotoDate: "2024-06-01"},
		{Vector: basisVector(1), SourcePath: "other.jpg", TenantID: org.ID},
		{Vector: nearDup, SourcePath: "near.jpg", TenantID: org.ID},
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 inserted, got %d", n)
	}

	results, err := repo.Search(ctx, basisVector(0), org.ID, 0.9, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected exactly 2 results above 0.9, got %d", len(results))
	}
	if results[0].Record.SourcePath != "exact.jpg" {
		t.Errorf("expected exact match first, got %s", results[0].Record.SourcePath)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results not sorted by descending similarity")
	}
}

func TestPhotoSearchTenantIsolation(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	acme := createOrg(t, pool, "Acme")
	globex := createOrg(t, pool, "Globex")
	repo := NewPhotoRepository(pool, facestore.EmbeddingDim)

	_, err := repo.InsertBatch(ctx, []facestore.FaceRecord{
		{Vector: basisVector(0), SourcePath: "acme.jpg", TenantID: acme.ID},
		{Vector: basisVector(0), SourcePath: "globex.jpg", TenantID: globex.ID},
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	results, err := repo.Search(ctx, basisVector(0), acme.ID, 0.5, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Record.TenantID != acme.ID {
		t.Errorf("tenant isolation violated: %+v", results)
	}
}

func TestPhotoUngroupedAndPlatformWideSearch(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	org := createOrg(t, pool, "Acme")
	repo := NewPhotoRepository(pool, facestore.EmbeddingDim)

	n, err := repo.InsertBatch(ctx, []facestore.FaceRecord{
		{Vector: basisVector(0), SourcePath: "ungrouped.jpg"},
		{Vector: basisVector(0), SourcePath: "acme.jpg", TenantID: org.ID},
	})
	if err != nil {
		t.Fatalf("InsertBatch with empty tenant failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}

	// Empty scope searches platform-wide.
	results, err := repo.Search(ctx, basisVector(0), "", 0.5, 10)
	if err != nil {
		t.Fatalf("platform-wide Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results across all tenants, got %d", len(results))
	}
	for _, r := range results {
		if r.Record.SourcePath == "ungrouped.jpg" && r.Record.TenantID != "" {
			t.Errorf("ungrouped record came back with tenant %q", r.Record.TenantID)
		}
	}

	// Tenant scope still excludes ungrouped records.
	scoped, err := repo.Search(ctx, basisVector(0), org.ID, 0.5, 10)
	if err != nil {
		t.Fatalf("scoped Search failed: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Record.SourcePath != "acme.jpg" {
		t.Errorf("expected only the tenant's photo, got %+v", scoped)
	}
}

func TestMatchUpsertIdempotent(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	org := createOrg(t, pool, "Acme")
	photos := NewPhotoRepository(pool, facestore.EmbeddingDim)
	profiles := NewProfileRepository(pool)
	matches := NewMatchRepository(pool)

	userID, err := profiles.Create(ctx, &Profile{OrgID: org.ID, Email: "alice@acme.test", Role: "employee"})
	if err != nil {
		t.Fatalf("creating profile: %v", err)
	}
	rec := facestore.FaceRecord{ID: "00000000-0000-0000-0000-000000000001", Vector: basisVector(0), SourcePath: "a.jpg", TenantID: org.ID}
	if _, err := photos.InsertBatch(ctx, []facestore.FaceRecord{rec}); err != nil {
		t.Fatalf("inserting photo: %v", err)
	}

	link := match.Link{PhotoID: rec.ID, UserID: userID, Similarity: 0.8}
	for i, sim := range []float64{0.8, 0.95} {
		link.Similarity = sim
		if _, err := matches.UpsertBatch(ctx, []match.Link{link}); err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}

	ids, err := matches.ListPhotoIDs(ctx, userID)
	if err != nil {
		t.Fatalf("ListPhotoIDs failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 link after re-upsert, got %d", len(ids))
	}
}

func TestProfileReferenceEmbedding(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	org := createOrg(t, pool, "Acme")
	profiles := NewProfileRepository(pool)

	userID, err := profiles.Create(ctx, &Profile{OrgID: org.ID, Email: "bob@acme.test", Role: "employee"})
	if err != nil {
		t.Fatalf("creating profile: %v", err)
	}

	if _, err := profiles.ReferenceEmbedding(ctx, userID); !errors.Is(err, match.ErrReferenceNotFound) {
		t.Fatalf("expected ErrReferenceNotFound before enrollment, got %v", err)
	}

	if err := profiles.SetReferenceEmbedding(ctx, userID, basisVector(2)); err != nil {
		t.Fatalf("SetReferenceEmbedding failed: %v", err)
	}
	vec, err := profiles.ReferenceEmbedding(ctx, userID)
	if err != nil {
		t.Fatalf("ReferenceEmbedding failed: %v", err)
	}
	if len(vec) != facestore.EmbeddingDim || vec[2] != 1 {
		t.Errorf("unexpected embedding after enrollment")
	}
}

func TestFindByEmbeddingFaceLogin(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	org := createOrg(t, pool, "Acme")
	profiles := NewProfileRepository(pool)

	aliceID, err := profiles.Create(ctx, &Profile{OrgID: org.ID, Email: "alice@acme.test", Role: "employee"})
	if err != nil {
		t.Fatalf("creating profile: %v", err)
	}
	if err := profiles.SetReferenceEmbedding(ctx, aliceID, basisVector(0)); err != nil {
		t.Fatalf("enrolling alice: %v", err)
	}

	p, sim, err := profiles.FindByEmbedding(ctx, org.ID, basisVector(0), 0.75)
	if err != nil {
		t.Fatalf("FindByEmbedding failed: %v", err)
	}
	if p.ID != aliceID || sim < 0.99 {
		t.Errorf("expected alice with similarity ~1, got %s at %v", p.ID, sim)
	}

	if _, _, err := profiles.FindByEmbedding(ctx, org.ID, basisVector(5), 0.75); !errors.Is(err, facestore.ErrNotFound) {
		t.Errorf("expected ErrNotFound for dissimilar face, got %v", err)
	}
}

func TestBundleLifecycle(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	org := createOrg(t, pool, "Acme")
	photos := NewPhotoRepository(pool, facestore.EmbeddingDim)
	bundles := NewBundleRepository(pool)

	rec := facestore.FaceRecord{ID: "00000000-0000-0000-0000-000000000002", Vector: basisVector(0), SourcePath: "a.jpg", TenantID: org.ID}
	if _, err := photos.InsertBatch(ctx, []facestore.FaceRecord{rec}); err != nil {
		t.Fatalf("inserting photo: %v", err)
	}

	b, err := bundles.Create(ctx, org.ID, "Offsite 2024", "", []string{rec.ID})
	if err != nil {
		t.Fatalf("creating bundle: %v", err)
	}

	got, err := bundles.Get(ctx, org.ID, b.ID)
	if err != nil {
		t.Fatalf("getting bundle: %v", err)
	}
	if got.Name != "Offsite 2024" || len(got.PhotoIDs) != 1 {
		t.Errorf("unexpected bundle: %+v", got)
	}

	other := createOrg(t, pool, "Globex")
	if _, err := bundles.Get(ctx, other.ID, b.ID); !errors.Is(err, facestore.ErrNotFound) {
		t.Errorf("expected cross-tenant bundle access to fail, got %v", err)
	}

	if err := bundles.Delete(ctx, org.ID, b.ID); err != nil {
		t.Fatalf("deleting bundle: %v", err)
	}
	if _, err := bundles.Get(ctx, org.ID, b.ID); !errors.Is(err, facestore.ErrNotFound) {
		t.Errorf("expected bundle gone after delete, got %v", err)
	}
}

func TestUsageLogReadBack(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	org := createOrg(t, pool, "Acme")
	logger := NewUsageLogger(pool, nil)

	logger.Log(ctx, usage.Entry{OrgID: org.ID, Action: usage.ActionScan, Bytes: 4096})
	logger.Log(ctx, usage.Entry{OrgID: org.ID, Action: usage.ActionSearch, Metadata: map[string]any{"results": 3}})

	records, err := logger.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 usage records, got %d", len(records))
	}
	if records[0].Action != usage.ActionSearch {
		t.Errorf("expected newest entry first, got %s", records[0].Action)
	}
	if records[1].Bytes != 4096 {
		t.Errorf("expected 4096 bytes on scan entry, got %d", records[1].Bytes)
	}

	limited, err := logger.ListRecent(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecent with limit failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit 1 to cap results, got %d", len(limited))
	}
}

func TestProfileListAll(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	acme := createOrg(t, pool, "Acme")
	globex := createOrg(t, pool, "Globex")
	profiles := NewProfileRepository(pool)

	for _, p := range []*Profile{
		{OrgID: acme.ID, Email: "alice@acme.test", Role: "employee"},
		{OrgID: globex.ID, Email: "bob@globex.test", Role: "admin"},
	} {
		if _, err := profiles.Create(ctx, p); err != nil {
			t.Fatalf("creating profile %s: %v", p.Email, err)
		}
	}

	all, err := profiles.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 profiles across tenants, got %d", len(all))
	}
}

func TestOrgStorageAccounting(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	orgs := NewOrgRepository(pool)
	org := createOrg(t, pool, "Acme")

	if err := orgs.AddStorageUsed(ctx, org.ID, 1024); err != nil {
		t.Fatalf("AddStorageUsed failed: %v", err)
	}
	got, err := orgs.GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.StorageUsedBytes != 1024 {
		t.Errorf("expected 1024 bytes accounted, got %d", got.StorageUsedBytes)
	}
}
