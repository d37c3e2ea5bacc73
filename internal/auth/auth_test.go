package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/impression/internal/domain"
)

type mockRepo struct {
	byHash map[string]*domain.Principal
	err    error
}

func (m *mockRepo) PrincipalByToken(_ context.Context, hash string) (*domain.Principal, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.byHash[hash]
	if !ok {
		return nil, ErrInvalidToken
	}
	return p, nil
}

func newAuthenticator() *TokenAuthenticator {
	return NewTokenAuthenticator(&mockRepo{byHash: map[string]*domain.Principal{
		HashToken("s3cret"): {Type: "token", ID: "1", Name: "ci", GroupIDs: []string{"ops"}},
	}})
}

func TestRequireToken(t *testing.T) {
	var seen *domain.Principal
	h := newAuthenticator().RequireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"token scheme", "Token s3cret", http.StatusNoContent},
		{"bearer scheme", "Bearer s3cret", http.StatusNoContent},
		{"lowercase scheme", "token s3cret", http.StatusNoContent},
		{"wrong token", "Token nope", http.StatusUnauthorized},
		{"basic scheme", "Basic czNjcmV0", http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, "/api/send_message/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, "ci", seen.Name)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequireToken_RepositoryError(t *testing.T) {
	a := NewTokenAuthenticator(&mockRepo{err: errors.New("db down")})
	h := a.RequireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/send_message/", nil)
	req.Header.Set("Authorization", "Token s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPrincipalFrom_Empty(t *testing.T) {
	assert.Nil(t, PrincipalFrom(context.Background()))
}
