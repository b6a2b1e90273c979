package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/auth"
)

const (
	findTokenByHashSQL = `SELECT user_id, is_admin FROM auth_tokens WHERE token_hash = $1`

	createTokenSQL = `INSERT INTO auth_tokens (id, token_hash, user_id, is_admin)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_hash) DO NOTHING`
)

var _ auth.Repository = (*TokenRepository)(nil)

// TokenRepository implements auth.Repository backed by PostgreSQL. Tokens
// are stored only as HMAC-SHA256 hashes.
type TokenRepository struct {
	db querier
}

// NewTokenRepository returns a TokenRepository that uses the given pool.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{db: pool}
}

// FindByHash resolves a token hash to an identity.
// Returns auth.ErrUnauthorized when no matching token exists.
func (r *TokenRepository) FindByHash(ctx context.Context, hash string) (*auth.Identity, error) {
	var ident auth.Identity
	err := r.db.QueryRow(ctx, findTokenByHashSQL, hash).Scan(&ident.UserID, &ident.Admin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUnauthorized
		}
		return nil, fmt.Errorf("finding token by hash: %w", err)
	}
	return &ident, nil
}

// Create stores a new token hash for a user. Used by seeding tools.
func (r *TokenRepository) Create(ctx context.Context, id, hash, userID string, admin bool) error {
	if _, err := r.db.Exec(ctx, createTokenSQL, id, hash, userID, admin); err != nil {
		return fmt.Errorf("creating token for user %q: %w", userID, err)
	}
	return nil
}
