package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/ak652231/TraceQ-sub001/pkg/domain"
	"github.com/ak652231/TraceQ-sub001/pkg/requestcontext"
)

// denyList is an in-memory RevocationChecker and Revoker.
type denyList struct {
	revoked map[string]bool
	err     error
}

func (d *denyList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.revoked[tokenID], nil
}

func (d *denyList) Revoke(_ context.Context, tokenID string, _ time.Duration) error {
	if d.err != nil {
		return d.err
	}
	d.revoked[tokenID] = true
	return nil
}

func newAuthRouter(deny *denyList) http.Handler {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	r := chi.NewRouter()
	r.Use(RequireAuth(tokens, deny, logger))
	NewHandler(deny, logger).Register(r)
	r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"user_id": requestcontext.UserID(ctx).String(),
			"role":    requestcontext.Role(ctx).String(),
		})
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	userID := id.NewUserID()
	token, err := tokens.Issue(userID, id.RoleOfficer, time.Hour)
	require.NoError(t, err)

	t.Run("bearer header resolves the identity", func(t *testing.T) {
		router := newAuthRouter(&denyList{revoked: map[string]bool{}})
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, userID.String(), body["user_id"])
		assert.Equal(t, "police", body["role"])
	})

	t.Run("query token is accepted for websocket handshakes", func(t *testing.T) {
		router := newAuthRouter(&denyList{revoked: map[string]bool{}})
		req := httptest.NewRequest(http.MethodGet, "/whoami?access_token="+token, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		router := newAuthRouter(&denyList{revoked: map[string]bool{}})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		router := newAuthRouter(&denyList{revoked: map[string]bool{}})
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("revocation backend failure is retryable", func(t *testing.T) {
		router := newAuthRouter(&denyList{err: errors.New("connection refused")})
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("logout revokes the presented token", func(t *testing.T) {
		router := newAuthRouter(&denyList{revoked: map[string]bool{}})

		req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
