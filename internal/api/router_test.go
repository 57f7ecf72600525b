package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alkewallet/wallet-core/internal/handler"
	"github.com/alkewallet/wallet-core/internal/infrastructure/auth"
	"github.com/alkewallet/wallet-core/internal/infrastructure/redis"
	"github.com/alkewallet/wallet-core/internal/notify"
	"github.com/alkewallet/wallet-core/internal/repository/memory"
	service "github.com/alkewallet/wallet-core/internal/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	users := memory.NewUserRepository()
	ledger, err := service.NewLedger(ctx, memory.NewTransactionStore())
	require.NoError(t, err)

	tokens := redis.NewMemoryClient()
	jwtService := auth.NewJWTService("secret")
	wallet := service.NewWalletService(users, memory.NewContactRepository(), ledger, tokens, jwtService, notify.LogNotifier{}, decimal.NewFromInt(20000))
	transfers := service.NewTransferService(ledger, users, notify.LogNotifier{})

	srv := httptest.NewServer(SetupRouter(handler.NewHandler(wallet, transfers), tokens, jwtService))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func register(t *testing.T, srv *httptest.Server, email, first string) {
	t.Helper()
	resp := call(t, srv, http.MethodPost, "/register", "", map[string]string{
		"email": email, "first_name": first, "last_name": "Tester", "password": "clave123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func login(t *testing.T, srv *httptest.Server, identifier string) string {
	t.Helper()
	resp := call(t, srv, http.MethodPost, "/login", "", map[string]string{"identifier": identifier, "password": "clave123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body["token"]
}

func TestRouter_WalletFlow(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "ana@example.com", "Ana")
	register(t, srv, "luis@example.com", "Luis")

	token := login(t, srv, "ana@example.com")
	require.NotEmpty(t, token)

	resp := call(t, srv, http.MethodGet, "/balance", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var balance map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&balance))
	assert.Equal(t, "20000.00", balance["balance"])

	resp = call(t, srv, http.MethodPost, "/transfer", token, map[string]interface{}{"recipient": "luis", "amount": 5000})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = call(t, srv, http.MethodGet, "/balance", token, nil)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&balance))
	assert.Equal(t, "15000.00", balance["balance"])

	resp = call(t, srv, http.MethodGet, "/recipients", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var recipients []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recipients))
	require.Len(t, recipients, 1)
	assert.Equal(t, "luis@example.com", recipients[0]["email"])

	resp = call(t, srv, http.MethodPost, "/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = call(t, srv, http.MethodGet, "/balance", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "token revoked by logout")
}

func TestRouter_Auth(t *testing.T) {
	srv := newTestServer(t)

	resp := call(t, srv, http.MethodGet, "/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = call(t, srv, http.MethodGet, "/balance", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = call(t, srv, http.MethodPost, "/login", "", map[string]string{"identifier": "ghost", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)

	resp := call(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = call(t, srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
