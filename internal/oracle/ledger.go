package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	commonhttp "pgt-ticketing/internal/common/http"
	"pgt-ticketing/internal/solana"
)

// Ledger is the read side of the chain the oracle depends on.
type Ledger interface {
	// ResolveHoldingAccount returns the account that holds mint for wallet.
	ResolveHoldingAccount(mint, wallet solana.PublicKey) (solana.PublicKey, error)
	// GetAccountBalance returns the token amount held by account; found is
	// false when the account does not exist.
	GetAccountBalance(ctx context.Context, account, mint solana.PublicKey) (amount decimal.Decimal, found bool, err error)
}

// errMalformed marks an RPC answer the ledger could not interpret.
var errMalformed = errors.New("malformed rpc response")

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      uint64           `json:"id"`
	Result  *accountInfoBody `json:"result"`
	Error   *RPCError        `json:"error"`
}

type accountInfoBody struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value *accountValue `json:"value"`
}

type accountValue struct {
	Owner string          `json:"owner"`
	Data  json.RawMessage `json:"data"`
}

type parsedData struct {
	Program string `json:"program"`
	Parsed  struct {
		Type string `json:"type"`
		Info struct {
			Mint        string `json:"mint"`
			Owner       string `json:"owner"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals int32  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// RPCLedger reads token accounts over Solana JSON-RPC.
type RPCLedger struct {
	client       *commonhttp.Client
	endpoint     string
	commitment   string
	tokenProgram solana.PublicKey
}

// NewRPCLedger builds a ledger against endpoint. An empty commitment means
// "confirmed"; a zero tokenProgram means the classic SPL Token program.
func NewRPCLedger(endpoint, commitment string, tokenProgram solana.PublicKey, timeout time.Duration) *RPCLedger {
	return NewRPCLedgerWithClient(commonhttp.NewClient(timeout), endpoint, commitment, tokenProgram)
}

func NewRPCLedgerWithClient(client *commonhttp.Client, endpoint, commitment string, tokenProgram solana.PublicKey) *RPCLedger {
	if commitment == "" {
		commitment = "confirmed"
	}
	if tokenProgram.IsZero() {
		tokenProgram = solana.TokenProgramID
	}
	return &RPCLedger{
		client:       client,
		endpoint:     endpoint,
		commitment:   commitment,
		tokenProgram: tokenProgram,
	}
}

func (l *RPCLedger) ResolveHoldingAccount(mint, wallet solana.PublicKey) (solana.PublicKey, error) {
	return solana.FindAssociatedTokenAddress(wallet, mint, l.tokenProgram)
}

func (l *RPCLedger) GetAccountBalance(ctx context.Context, account, mint solana.PublicKey) (decimal.Decimal, bool, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getAccountInfo",
		Params: []interface{}{
			account.String(),
			map[string]string{
				"encoding":   "jsonParsed",
				"commitment": l.commitment,
			},
		},
	}

	var resp rpcResponse
	if err := l.client.PostJSON(ctx, l.endpoint, req, &resp); err != nil {
		return decimal.Zero, false, err
	}
	if resp.Error != nil {
		return decimal.Zero, false, resp.Error
	}
	if resp.Result == nil {
		return decimal.Zero, false, fmt.Errorf("%w: missing result", errMalformed)
	}
	if resp.Result.Value == nil {
		return decimal.Zero, false, nil
	}

	var data parsedData
	if err := json.Unmarshal(resp.Result.Value.Data, &data); err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: account data is not jsonParsed: %v", errMalformed, err)
	}
	if data.Parsed.Type != "account" {
		return decimal.Zero, false, fmt.Errorf("%w: unexpected account type %q", errMalformed, data.Parsed.Type)
	}

	info := data.Parsed.Info
	if info.Mint != mint.String() {
		return decimal.Zero, false, fmt.Errorf("%w: account holds mint %s, want %s", errMalformed, info.Mint, mint)
	}

	raw, err := decimal.NewFromString(info.TokenAmount.Amount)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: token amount %q: %v", errMalformed, info.TokenAmount.Amount, err)
	}
	return raw.Shift(-info.TokenAmount.Decimals), true, nil
}

// Health calls getHealth and reports an error unless the node answers "ok".
func (l *RPCLedger) Health(ctx context.Context) error {
	var resp struct {
		Result string    `json:"result"`
		Error  *RPCError `json:"error"`
	}
	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: "getHealth"}
	if err := l.client.PostJSON(ctx, l.endpoint, req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if resp.Result != "ok" {
		return fmt.Errorf("node health %q", resp.Result)
	}
	return nil
}
