// Package auth issues and verifies the HS256 tokens that scope every
// API request to a user and an organization.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles ordered by privilege.
const (
	RoleGuest      = "guest"
	RoleEmployee   = "employee"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

var roleRank = map[string]int{
	RoleGuest:      0,
	RoleEmployee:   1,
	RoleAdmin:      2,
	RoleSuperadmin: 3,
}

// RoleAtLeast reports whether role meets or exceeds the required role.
// Unknown roles never qualify.
func RoleAtLeast(role, required string) bool {
	r, ok := roleRank[role]
	if !ok {
		return false
	}
	req, ok := roleRank[required]
	if !ok {
		return false
	}
	return r >= req
}

// Token lifetimes.
const (
	TokenTTL       = 7 * 24 * time.Hour
	SudoTokenTTL   = time.Hour
	signingMethod  = "HS256"
	minSecretBytes = 16
)

// ErrInvalidToken reports a token that failed verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload. OrgID scopes all data access; Sudo marks
// a superadmin temporarily acting inside another tenant.
type Claims struct {
	Email   string `json:"email"`
	Role    string `json:"role"`
	OrgID   string `json:"org_id"`
	OrgSlug string `json:"org_slug"`
	OrgName string `json:"org_name"`
	Sudo    bool   `json:"sudo,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller attached to a request context.
type Identity struct {
	UserID  string
	Email   string
	Role    string
	OrgID   string
	OrgSlug string
	OrgName string
	Sudo    bool
}

// Manager signs and verifies tokens with a shared secret.
type Manager struct {
	secret []byte
}

// NewManager creates a token manager. The secret must be at least 16 bytes.
func NewManager(secret string) (*Manager, error) {
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("JWT secret must be at least %d bytes", minSecretBytes)
	}
	return &Manager{secret: []byte(secret)}, nil
}

// Issue signs a token for the identity with the standard lifetime.
func (m *Manager) Issue(id Identity) (string, error) {
	return m.issue(id, TokenTTL)
}

// IssueSudo signs a short-lived token for a superadmin acting inside
// another tenant.
func (m *Manager) IssueSudo(id Identity) (string, error) {
	id.Sudo = true
	return m.issue(id, SudoTokenTTL)
}

func (m *Manager) issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:   id.Email,
		Role:    id.Role,
		OrgID:   id.OrgID,
		OrgSlug: id.OrgSlug,
		OrgName: id.OrgName,
		Sudo:    id.Sudo,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the caller identity.
func (m *Manager) Verify(tokenString string) (*Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID:  claims.Subject,
		Email:   claims.Email,
		Role:    claims.Role,
		OrgID:   claims.OrgID,
		OrgSlug: claims.OrgSlug,
		OrgName: claims.OrgName,
		Sudo:    claims.Sudo,
	}, nil
}
