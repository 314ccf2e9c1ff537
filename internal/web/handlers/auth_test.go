package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/LeulTew/aura/internal/auth"
	"github.com/LeulTew/aura/internal/facestore/postgres"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *fakeOrgStore, *fakeProfileStore, *auth.Manager) {
	t.Helper()

	orgs := &fakeOrgStore{orgs: map[string]*postgres.Organization{
		"acme": {ID: "org-1", Name: "Acme Corp", Slug: "acme", Plan: "free"},
	}}
	profiles := newFakeProfileStore()

	hash, err := auth.HashPassword("correct-horse-battery")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	profiles.profiles["user-1"] = &postgres.Profile{
		ID:           "user-1",
		OrgID:        "org-1",
		Email:        "alice@acme.test",
		Role:         auth.RoleEmployee,
		PasswordHash: hash,
	}
	profiles.refs["user-1"] = basisVector(0)

	tokens := testTokens(t)
	faces := &fakeFaceSource{vectors: [][]float32{basisVector(0)}}
	h := NewAuthHandler(testConfig(), tokens, orgs, profiles, faces, nil, nil)
	return h, orgs, profiles, tokens
}

func postJSON(t *testing.T, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
}

func TestLoginSuccess(t *testing.T) {
	h, _, _, tokens := setupAuthHandler(t)

	req := postJSON(t, loginRequest{Org: "acme", Email: "alice@acme.test", Password: "correct-horse-battery"})
	rec := doRequest(h.Login, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	id, err := tokens.Verify(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if id.UserID != "user-1" || id.OrgID != "org-1" || id.Role != auth.RoleEmployee {
		t.Errorf("unexpected identity: %+v", id)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, _, _, _ := setupAuthHandler(t)

	req := postJSON(t, loginRequest{Org: "acme", Email: "alice@acme.test", Password: "wrong"})
	if rec := doRequest(h.Login, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestLoginUnknownOrg(t *testing.T) {
	h, _, _, _ := setupAuthHandler(t)

	req := postJSON(t, loginRequest{Org: "nope", Email: "alice@acme.test", Password: "correct-horse-battery"})
	if rec := doRequest(h.Login, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown org, got %d", rec.Code)
	}
}

func TestLoginWithPIN(t *testing.T) {
	h, _, _, tokens := setupAuthHandler(t)

	req := postJSON(t, loginRequest{Org: "acme", PIN: "4242"})
	rec := doRequest(h.Login, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp loginResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	id, err := tokens.Verify(resp.Token)
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if id.Role != auth.RoleAdmin {
		t.Errorf("expected admin role from PIN login, got %s", id.Role)
	}

	req = postJSON(t, loginRequest{Org: "acme", PIN: "0000"})
	if rec := doRequest(h.Login, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong PIN, got %d", rec.Code)
	}
}

func TestFaceLoginRecognized(t *testing.T) {
	h, _, _, tokens := setupAuthHandler(t)

	body, contentType := multipartUpload(t, []byte("selfie"), map[string]string{"org": "acme"})
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)

	rec := doRequest(h.FaceLogin, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	id, err := tokens.Verify(resp.Token)
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if id.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", id.UserID)
	}
}

func TestFaceLoginUnrecognizedFace(t *testing.T) {
	h, _, _, _ := setupAuthHandler(t)
	// A face orthogonal to every enrolled reference.
	h.faces = &fakeFaceSource{vectors: [][]float32{basisVector(5)}}

	body, contentType := multipartUpload(t, []byte("selfie"), map[string]string{"org": "acme"})
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)

	if rec := doRequest(h.FaceLogin, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unrecognized face, got %d", rec.Code)
	}
}

func TestEnrollStoresReference(t *testing.T) {
	h, _, profiles, _ := setupAuthHandler(t)
	h.faces = &fakeFaceSource{vectors: [][]float32{basisVector(3)}}

	body, contentType := multipartUpload(t, []byte("selfie"), nil)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	req = withIdentity(req, &auth.Identity{UserID: "user-1", OrgID: "org-1", Role: auth.RoleEmployee})

	if rec := doRequest(h.Enroll, req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ref := profiles.refs["user-1"]; ref[3] != 1 {
		t.Error("reference embedding not updated")
	}
}

func TestSwitchTenantRequiresSuperadmin(t *testing.T) {
	h, _, _, _ := setupAuthHandler(t)

	req := postJSON(t, map[string]string{"org_id": "org-1"})
	req = withIdentity(req, &auth.Identity{UserID: "user-1", Role: auth.RoleAdmin})
	if rec := doRequest(h.SwitchTenant, req); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-superadmin, got %d", rec.Code)
	}
}

func TestSwitchTenantIssuesSudoToken(t *testing.T) {
	h, _, _, tokens := setupAuthHandler(t)

	req := postJSON(t, map[string]string{"org_id": "org-1"})
	req = withIdentity(req, &auth.Identity{UserID: "root", Role: auth.RoleSuperadmin, OrgID: "platform"})

	rec := doRequest(h.SwitchTenant, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	id, err := tokens.Verify(resp.Token)
	if err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if !id.Sudo || id.OrgID != "org-1" {
		t.Errorf("expected sudo token scoped to org-1, got %+v", id)
	}
}
