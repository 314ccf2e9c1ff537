package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LeulTew/aura/internal/auth"
	"github.com/LeulTew/aura/internal/config"
	"github.com/LeulTew/aura/internal/extractor"
	"github.com/LeulTew/aura/internal/facestore"
	"github.com/LeulTew/aura/internal/facestore/postgres"
	"github.com/LeulTew/aura/internal/match"
	"github.com/LeulTew/aura/internal/web/middleware"
)

func basisVector(hot int) []float32 {
	v := make([]float32, facestore.EmbeddingDim)
	v[hot] = 1
	return v
}

// fakeFaceSource returns one canned detection per configured vector.
type fakeFaceSource struct {
	vectors [][]float32
	err     error
}

func (f *fakeFaceSource) Detect(_ context.Context, _ []byte, mode extractor.Mode) ([]extractor.Detection, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.vectors) == 0 {
		return nil, extractor.ErrNoFaceDetected
	}
	vectors := f.vectors
	if mode == extractor.LargestOnly {
		vectors = vectors[:1]
	}
	out := make([]extractor.Detection, len(vectors))
	for i, v := range vectors {
		out[i] = extractor.Detection{Vector: v, BBox: []float64{0, 0, 10, 10}, DetScore: 0.99}
	}
	return out, nil
}

type fakeOrgStore struct {
	orgs map[string]*postgres.Organization // by slug
}

func (f *fakeOrgStore) GetBySlug(_ context.Context, slug string) (*postgres.Organization, error) {
	if org, ok := f.orgs[slug]; ok {
		return org, nil
	}
	return nil, facestore.ErrNotFound
}

func (f *fakeOrgStore) GetByID(_ context.Context, id string) (*postgres.Organization, error) {
	for _, org := range f.orgs {
		if org.ID == id {
			return org, nil
		}
	}
	return nil, facestore.ErrNotFound
}

type fakeProfileStore struct {
	profiles map[string]*postgres.Profile // by ID
	refs     map[string][]float32
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		profiles: make(map[string]*postgres.Profile),
		refs:     make(map[string][]float32),
	}
}

func (f *fakeProfileStore) GetByEmail(_ context.Context, orgID, email string) (*postgres.Profile, error) {
	for _, p := range f.profiles {
		if p.OrgID == orgID && p.Email == email {
			return p, nil
		}
	}
	return nil, facestore.ErrNotFound
}

func (f *fakeProfileStore) GetByID(_ context.Context, id string) (*postgres.Profile, error) {
	if p, ok := f.profiles[id]; ok {
		return p, nil
	}
	return nil, facestore.ErrNotFound
}

func (f *fakeProfileStore) Create(_ context.Context, p *postgres.Profile) (string, error) {
	id := p.ID
	if id == "" {
		id = "user-" + p.Email
	}
	p.ID = id
	f.profiles[id] = p
	return id, nil
}

func (f *fakeProfileStore) SetReferenceEmbedding(_ context.Context, userID string, vector []float32) error {
	if _, ok := f.profiles[userID]; !ok {
		return facestore.ErrNotFound
	}
	f.refs[userID] = vector
	return nil
}

func (f *fakeProfileStore) ReferenceEmbedding(_ context.Context, userID string) ([]float32, error) {
	if v, ok := f.refs[userID]; ok {
		return v, nil
	}
	return nil, match.ErrReferenceNotFound
}

func (f *fakeProfileStore) FindByEmbedding(_ context.Context, orgID string, query []float32, threshold float64) (*postgres.Profile, float64, error) {
	var (
		best    *postgres.Profile
		bestSim float64
	)
	for id, ref := range f.refs {
		p := f.profiles[id]
		if p == nil || p.OrgID != orgID {
			continue
		}
		sim := facestore.Similarity(query, ref)
		if sim >= threshold && sim > bestSim {
			best, bestSim = p, sim
		}
	}
	if best == nil {
		return nil, 0, facestore.ErrNotFound
	}
	return best, bestSim, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Match: config.MatchConfig{Threshold: 0.6},
		Auth:  config.AuthConfig{AdminPIN: "4242"},
		Web:   config.WebConfig{PublicDomain: "https://aura.example.com"},
	}
}

func testTokens(t *testing.T) *auth.Manager {
	t.Helper()
	m, err := auth.NewManager("handler-test-secret-0123456789")
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

// withIdentity attaches a verified identity to the request, standing in
// for the auth middleware.
func withIdentity(r *http.Request, id *auth.Identity) *http.Request {
	return r.WithContext(middleware.SetIdentityInContext(r.Context(), id))
}

// multipartUpload builds a multipart request body with a "file" field and
// optional extra form values.
func multipartUpload(t *testing.T, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "photo.jpg")
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func doRequest(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, r)
	return rec
}
