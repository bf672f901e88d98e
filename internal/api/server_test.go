package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgt-ticketing/internal/access"
	"pgt-ticketing/internal/catalog"
	"pgt-ticketing/internal/common/config"
	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/issuance"
	"pgt-ticketing/internal/oracle"
	"pgt-ticketing/internal/solana"
	"pgt-ticketing/internal/tickets"
	"pgt-ticketing/internal/tickets/memstore"
	"pgt-ticketing/internal/tier"
)

const (
	testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type stubOracle struct {
	amount decimal.Decimal
	status oracle.Status
	err    error
	calls  atomic.Int32
}

func (s *stubOracle) GetBalance(context.Context, solana.PublicKey, solana.PublicKey) (oracle.Result, error) {
	s.calls.Add(1)
	return oracle.Result{Amount: s.amount, Status: s.status}, s.err
}

func holding(n int64) *stubOracle {
	return &stubOracle{amount: decimal.NewFromInt(n), status: oracle.StatusConfirmed}
}

type harness struct {
	handler http.Handler
	store   *memstore.Store
	oracle  *stubOracle
}

func newHarness(t *testing.T, o *stubOracle, degraded bool, ready map[string]ReadinessCheck) *harness {
	t.Helper()
	log := logger.NewTestLogger(t)

	cat, err := catalog.New(map[string]config.ResourceConfig{
		"museumx": {DisplayName: "Museum X", RequiredTier: "silver"},
		"vault":   {DisplayName: "The Vault", RequiredTier: "platinum"},
	}, nil)
	require.NoError(t, err)

	gate, err := access.NewGate(o, access.Options{
		Mint:           solana.MustParsePublicKey(testMint),
		MinimumBalance: decimal.NewFromInt(1),
		Thresholds:     tier.DefaultThresholds(),
		Resources:      cat,
	}, log, nil)
	require.NoError(t, err)

	store := memstore.New()
	var issuer issuance.Issuer
	if degraded {
		issuer = issuance.NewEphemeralIssuer(5*time.Minute, "museum-pass", nil, log)
	} else {
		issuer = issuance.NewDurableIssuer(tickets.NewAllocator(store, log), cat, nil, nil, log)
	}

	srv, err := NewServer(Options{
		Service:        issuance.NewService(gate, issuer, log),
		Logger:         log,
		AllowedOrigins: []string{"https://museum.example"},
		Readiness:      ready,
		MetricsHandler: http.NotFoundHandler(),
	})
	require.NoError(t, err)

	return &harness{handler: srv.Handler(), store: store, oracle: o}
}

func (h *harness) post(t *testing.T, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func (h *harness) provision(t *testing.T, resourceID string, n int) {
	codes := make([]string, n)
	for i := range codes {
		codes[i] = fmt.Sprintf("%s-%d", resourceID, i)
	}
	_, err := h.store.Provision(context.Background(), resourceID, "", codes)
	require.NoError(t, err)
}

func TestCheckHolder(t *testing.T) {
	tests := []struct {
		name       string
		oracle     *stubOracle
		body       string
		wantStatus int
		check      func(t *testing.T, out map[string]interface{})
	}{
		{
			name:       "gold holder",
			oracle:     holding(2_000_000),
			body:       `{"walletAddress":"` + testWallet + `"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, out map[string]interface{}) {
				assert.Equal(t, true, out["success"])
				assert.Equal(t, true, out["authorized"])
				assert.Equal(t, "2000000", out["balance"])
				assert.Equal(t, "gold", out["tier"])
			},
		},
		{
			name:       "no token account",
			oracle:     &stubOracle{amount: decimal.Zero, status: oracle.StatusNoAccount},
			body:       `{"walletAddress":"` + testWallet + `"}`,
			wantStatus: http.StatusUnauthorized,
			check: func(t *testing.T, out map[string]interface{}) {
				assert.Equal(t, false, out["success"])
				assert.Equal(t, false, out["authorized"])
				assert.Equal(t, "0", out["balance"])
				assert.Equal(t, "1", out["minimum"])
				assert.Equal(t, "INSUFFICIENT_BALANCE", out["code"])
			},
		},
		{
			name:       "oracle down",
			oracle:     &stubOracle{err: fmt.Errorf("%w: 503", oracle.ErrUnavailable)},
			body:       `{"walletAddress":"` + testWallet + `"}`,
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, out map[string]interface{}) {
				assert.Equal(t, "ORACLE_UNAVAILABLE", out["code"])
				assert.NotContains(t, out, "details")
			},
		},
		{
			name:       "missing wallet",
			oracle:     holding(1),
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, out map[string]interface{}) {
				assert.Equal(t, "INVALID_INPUT", out["code"])
			},
		},
		{
			name:       "malformed json",
			oracle:     holding(1),
			body:       `{"walletAddress":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.oracle, false, nil)
			rec, out := h.post(t, "/api/auth/pgt", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.check != nil {
				tt.check(t, out)
			}
		})
	}
}

func TestInvalidWalletIsRejectedBeforeOracle(t *testing.T) {
	h := newHarness(t, holding(2_000_000), false, nil)
	h.provision(t, "museumx", 1)

	rec, out := h.post(t, "/api/auth/pgt", `{"walletAddress":"not-a-wallet"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ADDRESS", out["code"])

	rec, out = h.post(t, "/api/claim-ticket", `{"walletAddress":"not-a-wallet","resourceId":"museumx"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ADDRESS", out["code"])

	assert.Equal(t, int32(0), h.oracle.calls.Load())
	inv, err := h.store.Inventory(context.Background(), "museumx")
	require.NoError(t, err)
	assert.Equal(t, 1, inv.Available)
}

func TestClaimTicket(t *testing.T) {
	h := newHarness(t, holding(2_000_000), false, nil)
	h.provision(t, "museumx", 1)
	h.provision(t, "vault", 1)

	rec, out := h.post(t, "/api/claim-ticket", `{"walletAddress":"`+testWallet+`","resourceId":"museumx","tier":"silver"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "museumx-0", out["ticketCode"])
	assert.Equal(t, "Museum X", out["resourceName"])
	assert.Equal(t, "gold", out["tier"])

	rec, out = h.post(t, "/api/claim-ticket", `{"walletAddress":"`+testWallet+`","resourceId":"museumx"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SOLD_OUT", out["code"])

	rec, out = h.post(t, "/api/claim-ticket", `{"walletAddress":"`+testWallet+`","resourceId":"vault"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "TIER_TOO_LOW", out["code"])
	assert.Equal(t, "platinum", out["requiredTier"])

	rec, _ = h.post(t, "/api/claim-ticket", `{"walletAddress":"`+testWallet+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDegradedMode(t *testing.T) {
	h := newHarness(t, holding(400_000), true, nil)

	rec, out := h.post(t, "/api/generate-qr", `{"walletAddress":"`+testWallet+`","tier":"silver"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "silver", out["tier"])
	assert.NotEmpty(t, out["expiresAt"])

	var pass issuance.AccessPass
	require.NoError(t, json.Unmarshal([]byte(out["ticketPayload"].(string)), &pass))
	assert.Equal(t, testWallet, pass.Wallet)
	assert.Equal(t, 5*time.Minute, pass.ExpiresAt.Sub(pass.IssuedAt))

	rec, out = h.post(t, "/api/claim-ticket", `{"walletAddress":"`+testWallet+`","resourceId":"museumx"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ISSUANCE_UNAVAILABLE", out["code"])
}

func TestGeneratePass_InactiveInDurableMode(t *testing.T) {
	h := newHarness(t, holding(400_000), false, nil)

	rec, out := h.post(t, "/api/generate-qr", `{"walletAddress":"`+testWallet+`"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ISSUANCE_UNAVAILABLE", out["code"])
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t, holding(1), false, map[string]ReadinessCheck{
		"store":  func(context.Context) error { return nil },
		"oracle": func(context.Context) error { return errors.New("dial tcp 10.0.0.7:8899: connection refused") },
	})

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var out struct {
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ok", out.Checks["store"])
	assert.Equal(t, "unavailable", out.Checks["oracle"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestCORS(t *testing.T) {
	h := newHarness(t, holding(1), false, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/claim-ticket", nil)
	req.Header.Set("Origin", "https://museum.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://museum.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newHarness(t, holding(1), false, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))

	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t, holding(1), false, nil)

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
