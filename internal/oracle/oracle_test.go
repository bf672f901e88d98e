package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/solana"
)

const (
	testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	testATA    = "FGETo8T8wMcN2wCjav8VK6eh3dLk63evNDPxzLSJra8B"
)

// ==========================
// Test Helper Functions
// ==========================

func tokenAccountResponse(mint, amount string, decimals int) string {
	return fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":250000000},"value":{
		"data":{"parsed":{"info":{"isNative":false,"mint":%q,"owner":%q,"state":"initialized",
		"tokenAmount":{"amount":%q,"decimals":%d,"uiAmountString":"ignored"}},"type":"account"},
		"program":"spl-token","space":165},
		"executable":false,"lamports":2039280,"owner":"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"}}}`,
		mint, testWallet, amount, decimals)
}

type rpcCapture struct {
	calls  int32
	method string
	params []interface{}
}

func newRPCServer(t *testing.T, status int, body string, capture *rpcCapture) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			atomic.AddInt32(&capture.calls, 1)
			raw, _ := io.ReadAll(r.Body)
			var req rpcRequest
			if err := json.Unmarshal(raw, &req); err == nil {
				capture.method = req.Method
				capture.params = req.Params
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func createTestOracle(t *testing.T, endpoint string, timeout time.Duration) *Oracle {
	ledger := NewRPCLedger(endpoint, "", solana.PublicKey{}, 10*time.Second)
	return New(ledger, timeout, logger.NewTestLogger(t), nil)
}

func keys() (solana.PublicKey, solana.PublicKey) {
	return solana.MustParsePublicKey(testWallet), solana.MustParsePublicKey(testMint)
}

// ==========================
// RPC Ledger Tests
// ==========================

func TestGetBalance_ConfirmedHolding(t *testing.T) {
	capture := &rpcCapture{}
	srv := newRPCServer(t, http.StatusOK, tokenAccountResponse(testMint, "2000000000000", 6), capture)
	o := createTestOracle(t, srv.URL, time.Second)
	wallet, mint := keys()

	res, err := o.GetBalance(context.Background(), wallet, mint)
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed, res.Status)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(2_000_000)), "got %s", res.Amount)

	assert.Equal(t, int32(1), atomic.LoadInt32(&capture.calls))
	assert.Equal(t, "getAccountInfo", capture.method)
	require.Len(t, capture.params, 2)
	assert.Equal(t, testATA, capture.params[0])
	opts := capture.params[1].(map[string]interface{})
	assert.Equal(t, "jsonParsed", opts["encoding"])
	assert.Equal(t, "confirmed", opts["commitment"])
}

func TestGetBalance_FractionalAmount(t *testing.T) {
	srv := newRPCServer(t, http.StatusOK, tokenAccountResponse(testMint, "1500", 3), nil)
	o := createTestOracle(t, srv.URL, time.Second)
	wallet, mint := keys()

	res, err := o.GetBalance(context.Background(), wallet, mint)
	require.NoError(t, err)
	assert.Equal(t, "1.5", res.Amount.String())
}

func TestGetBalance_NoTokenAccount(t *testing.T) {
	srv := newRPCServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":null}}`, nil)
	o := createTestOracle(t, srv.URL, time.Second)
	wallet, mint := keys()

	res, err := o.GetBalance(context.Background(), wallet, mint)
	require.NoError(t, err)
	assert.Equal(t, StatusNoAccount, res.Status)
	assert.True(t, res.Amount.IsZero())
}

func TestGetBalance_UpstreamFailuresAreNotZero(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{
			name:   "json-rpc error",
			status: http.StatusOK,
			body:   `{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"Node is behind"}}`,
		},
		{
			name:   "http 503",
			status: http.StatusServiceUnavailable,
			body:   `upstream overloaded`,
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `{"jsonrpc":"2.0","id":1,"result":`,
		},
		{
			name:   "missing result",
			status: http.StatusOK,
			body:   `{"jsonrpc":"2.0","id":1}`,
		},
		{
			name:   "not a parsed token account",
			status: http.StatusOK,
			body:   `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":{"data":["AAAA","base64"],"owner":"11111111111111111111111111111111"}}}`,
		},
		{
			name:   "different mint",
			status: http.StatusOK,
			body:   tokenAccountResponse("So11111111111111111111111111111111111111112", "10", 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newRPCServer(t, tt.status, tt.body, nil)
			o := createTestOracle(t, srv.URL, time.Second)
			wallet, mint := keys()

			res, err := o.GetBalance(context.Background(), wallet, mint)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
			assert.True(t, res.Amount.IsZero())
			assert.Empty(t, res.Status)
		})
	}
}

func TestGetBalance_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	o := createTestOracle(t, srv.URL, 50*time.Millisecond)
	wallet, mint := keys()

	start := time.Now()
	_, err := o.GetBalance(context.Background(), wallet, mint)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGetBalance_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	o := createTestOracle(t, url, time.Second)
	wallet, mint := keys()

	_, err := o.GetBalance(context.Background(), wallet, mint)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

// ==========================
// Ledger boundary tests
// ==========================

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) ResolveHoldingAccount(mint, wallet solana.PublicKey) (solana.PublicKey, error) {
	args := m.Called(mint, wallet)
	return args.Get(0).(solana.PublicKey), args.Error(1)
}

func (m *mockLedger) GetAccountBalance(ctx context.Context, account, mint solana.PublicKey) (decimal.Decimal, bool, error) {
	args := m.Called(ctx, account, mint)
	return args.Get(0).(decimal.Decimal), args.Bool(1), args.Error(2)
}

func TestGetBalance_OffCurveOwnerIsClientError(t *testing.T) {
	pda := solana.MustParsePublicKey(testATA)
	_, mint := keys()

	ledger := NewRPCLedger("http://127.0.0.1:1", "finalized", solana.TokenProgramID, time.Second)
	o := New(ledger, time.Second, logger.NewNoOpLogger(), nil)

	_, err := o.GetBalance(context.Background(), pda, mint)
	require.Error(t, err)
	assert.True(t, errors.Is(err, solana.ErrOwnerOffCurve))
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestGetBalance_DeadlineAppliedToLedger(t *testing.T) {
	wallet, mint := keys()
	account := solana.MustParsePublicKey(testATA)

	ledger := &mockLedger{}
	ledger.On("ResolveHoldingAccount", mint, wallet).Return(account, nil)
	ledger.On("GetAccountBalance", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 2*time.Second
	}), account, mint).Return(decimal.NewFromInt(7), true, nil)

	o := New(ledger, 2*time.Second, logger.NewNoOpLogger(), nil)

	res, err := o.GetBalance(context.Background(), wallet, mint)
	require.NoError(t, err)
	assert.Equal(t, "7", res.Amount.String())
	ledger.AssertExpectations(t)
}

func TestRPCLedger_Health(t *testing.T) {
	capture := &rpcCapture{}
	srv := newRPCServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":"ok"}`, capture)
	require.NoError(t, NewRPCLedger(srv.URL, "", solana.PublicKey{}, time.Second).Health(context.Background()))
	assert.Equal(t, "getHealth", capture.method)
	assert.Empty(t, capture.params)

	behind := newRPCServer(t, http.StatusOK,
		`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"Node is behind by 42 slots"}}`, nil)
	err := NewRPCLedger(behind.URL, "", solana.PublicKey{}, time.Second).Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Node is behind")
}
