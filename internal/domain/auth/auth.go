// Package auth is the authenticated-identity boundary. The checkout core
// never issues credentials; it resolves opaque bearer tokens to an Identity
// via a repository of HMAC-hashed tokens.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned when a token cannot be resolved to an identity.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the acting user attached to each authenticated request.
type Identity struct {
	UserID string
	Admin  bool
}

// Repository provides lookup of token identities by the token's HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Identity, error)
}
