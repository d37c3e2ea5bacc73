// Package auth authenticates API callers by token and carries the
// resulting principal through the request context.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/pkg/httputil"
	"github.com/ignite/impression/internal/pkg/logger"
)

type contextKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFrom returns the authenticated principal, or nil.
func PrincipalFrom(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(contextKey{}).(*domain.Principal)
	return p
}

// HashToken is the form tokens are stored and looked up in.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// tokenFromRequest accepts "Token <t>" and "Bearer <t>".
func tokenFromRequest(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok {
		return ""
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
		return strings.TrimSpace(token)
	}
	return ""
}

// TokenAuthenticator resolves request tokens to principals.
type TokenAuthenticator struct {
	repo Repository
}

// NewTokenAuthenticator creates an authenticator backed by repo.
func NewTokenAuthenticator(repo Repository) *TokenAuthenticator {
	return &TokenAuthenticator{repo: repo}
}

// Authenticate resolves the request's token.
func (a *TokenAuthenticator) Authenticate(r *http.Request) (*domain.Principal, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return nil, ErrInvalidToken
	}
	return a.repo.PrincipalByToken(r.Context(), HashToken(token))
}

// RequireToken rejects requests without a valid token with 401 and stores
// the principal in the context otherwise.
func (a *TokenAuthenticator) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Authenticate(r)
		if err != nil {
			if !errors.Is(err, ErrInvalidToken) {
				logger.Error("token lookup failed", "error", err)
			}
			w.Header().Set("WWW-Authenticate", "Token")
			httputil.Unauthorized(w, "Authentication credentials were not provided or are invalid.")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}
