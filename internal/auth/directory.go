package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthenticated is returned when a bearer token cannot be resolved.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is an authenticated caller.
type Identity struct {
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// Directory resolves a bearer token to an identity.
type Directory interface {
	Resolve(ctx context.Context, bearerToken string) (Identity, error)
}

// JWTDirectory trusts HS256 tokens signed with a shared key.
type JWTDirectory struct {
	key    string
	issuer string
}

// NewJWTDirectory creates a directory. An empty issuer accepts any issuer.
func NewJWTDirectory(signingKey, issuer string) *JWTDirectory {
	return &JWTDirectory{key: signingKey, issuer: issuer}
}

// Resolve implements Directory.
func (d *JWTDirectory) Resolve(_ context.Context, bearerToken string) (Identity, error) {
	claims, err := Parse(bearerToken, d.key, d.issuer)
	if err != nil {
		return Identity{}, errors.Join(ErrUnauthenticated, err)
	}
	return Identity{
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		Name:          claims.Name,
		Authenticated: true,
	}, nil
}
