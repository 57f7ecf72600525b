package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alkewallet/wallet-core/internal/infrastructure/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService(t *testing.T) {
	svc := NewJWTService("secret")

	token, err := svc.GenerateJWT("u1")
	require.NoError(t, err)
	userID, err := svc.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	_, err = NewJWTService("other").ValidateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewJWTService("secret")
	expired.now = func() time.Time { return time.Now().Add(-2 * TokenTTL) }
	old, err := expired.GenerateJWT("u1")
	require.NoError(t, err)
	_, err = svc.ValidateJWT(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTService("").GenerateJWT("u1")
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	ctx := context.Background()
	store := redis.NewMemoryClient()
	svc := NewJWTService("secret")
	token, err := svc.GenerateJWT("u1")
	require.NoError(t, err)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := AuthMiddleware(store, svc)(next)

	serve := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/balance", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(""))
	assert.Equal(t, http.StatusUnauthorized, serve("Token "+token))
	assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+token), "not stored yet")

	require.NoError(t, store.Set(ctx, TokenKey("u1"), token, TokenTTL))
	assert.Equal(t, http.StatusOK, serve("Bearer "+token))
	assert.Equal(t, "u1", seen)

	require.NoError(t, store.Del(ctx, TokenKey("u1")))
	assert.Equal(t, http.StatusUnauthorized, serve("Bearer "+token), "revoked")
}
