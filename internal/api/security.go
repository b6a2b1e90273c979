package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/xenking/storefront/internal/domain/auth"
)

// identityKey is the context key for the authenticated identity.
type identityKey struct{}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	ident, ok := ctx.Value(identityKey{}).(auth.Identity)
	return ident, ok
}

// SecurityHandler authenticates requests via HMAC-SHA256 hashed bearer
// tokens. Tokens are opaque: issuance happens outside this service.
type SecurityHandler struct {
	tokens auth.Repository
	pepper []byte
}

// NewSecurityHandler creates a SecurityHandler with the given token
// repository and HMAC pepper.
func NewSecurityHandler(tokens auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		tokens: tokens,
		pepper: pepper,
	}
}

// HashToken computes the hex HMAC-SHA256 of a raw token. Exposed for the
// seeding tool so stored hashes match what Authenticate computes.
func (s *SecurityHandler) HashToken(token string) string {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate resolves the bearer token to an identity and stores it in
// the request context. Requests without a resolvable token get 401.
func (s *SecurityHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeErr(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
			return
		}

		ident, err := s.tokens.FindByHash(r.Context(), s.HashToken(token))
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "unauthorized", "unauthorized", nil)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, *ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if v, ok := strings.CutPrefix(h, "Bearer "); ok {
		return v
	}
	return ""
}
