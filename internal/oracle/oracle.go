// Package oracle answers "how many PGT does this wallet hold right now".
package oracle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/common/metrics"
	"pgt-ticketing/internal/common/observability"
	"pgt-ticketing/internal/solana"
)

// Status distinguishes a confirmed holding from a wallet that has never
// opened a token account. Both are successful lookups.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusNoAccount Status = "no_account"
)

var (
	ErrUnavailable = errors.New("ORACLE_UNAVAILABLE")
	ErrTimeout     = errors.New("ORACLE_TIMEOUT")
)

const defaultTimeout = 5 * time.Second

// Result is a point-in-time balance; it is never cached.
type Result struct {
	Amount decimal.Decimal
	Status Status
}

// BalanceOracle is what the access gate consumes.
type BalanceOracle interface {
	GetBalance(ctx context.Context, wallet, mint solana.PublicKey) (Result, error)
}

type Oracle struct {
	ledger  Ledger
	timeout time.Duration
	logger  logger.Logger
	obs     *observability.Observability
}

func New(ledger Ledger, timeout time.Duration, log logger.Logger, obs *observability.Observability) *Oracle {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Oracle{
		ledger:  ledger,
		timeout: timeout,
		logger:  logger.ForComponent(log, "oracle"),
		obs:     obs,
	}
}

// GetBalance resolves the wallet's holding account and reads it under a
// bounded deadline. A missing account is a zero balance with
// StatusNoAccount; any failure to reach or understand the ledger is returned
// as ErrUnavailable or ErrTimeout and never reported as zero.
func (o *Oracle) GetBalance(ctx context.Context, wallet, mint solana.PublicKey) (Result, error) {
	account, err := o.ledger.ResolveHoldingAccount(mint, wallet)
	if err != nil {
		return Result{}, err
	}

	ctx, span := o.obs.StartSpan(ctx, "oracle.GetBalance",
		attribute.String("wallet", wallet.String()),
		attribute.String("account", account.String()),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	amount, found, err := o.ledger.GetAccountBalance(ctx, account, mint)
	elapsed := time.Since(start)

	var (
		result  Result
		outcome string
	)
	switch {
	case err != nil:
		err = classify(ctx, err)
		outcome = "unavailable"
		if errors.Is(err, ErrTimeout) {
			outcome = "timeout"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		o.logger.Warn("balance lookup failed", map[string]interface{}{
			"wallet":   wallet.String(),
			"account":  account.String(),
			"duration": elapsed.String(),
			"error":    err,
		})
	case !found:
		result = Result{Amount: decimal.Zero, Status: StatusNoAccount}
		outcome = string(StatusNoAccount)
	default:
		result = Result{Amount: amount, Status: StatusConfirmed}
		outcome = string(StatusConfirmed)
	}

	metrics.OracleLookups.WithLabelValues(outcome).Inc()
	metrics.OracleLookupDuration.Observe(elapsed.Seconds())
	o.obs.RecordOracleLookup(ctx, elapsed, outcome)

	if err != nil {
		return Result{}, err
	}

	o.logger.Debug("balance resolved", map[string]interface{}{
		"wallet": wallet.String(),
		"amount": result.Amount.String(),
		"status": string(result.Status),
	})
	return result, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
