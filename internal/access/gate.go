// Package access decides whether a wallet may enter a resource.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/common/metrics"
	"pgt-ticketing/internal/common/observability"
	"pgt-ticketing/internal/oracle"
	"pgt-ticketing/internal/solana"
	"pgt-ticketing/internal/tier"
)

type Reason string

const (
	ReasonAuthorized          Reason = "authorized"
	ReasonInvalidAddress      Reason = "invalid_address"
	ReasonInsufficientBalance Reason = "insufficient_balance"
	ReasonTierTooLow          Reason = "tier_too_low"
)

// TierRequirements reports the tier a resource is gated at.
type TierRequirements interface {
	RequiredTier(resourceID string) (tier.Tier, bool)
}

// Decision is a point-in-time verdict; the balance may change right after.
type Decision struct {
	Authorized     bool
	Reason         Reason
	Message        string
	Wallet         solana.PublicKey
	Tier           tier.Tier
	Balance        decimal.Decimal
	BalanceStatus  oracle.Status
	Minimum        decimal.Decimal
	RequiredTier   tier.Tier
	HasRequirement bool
}

type Gate struct {
	oracle     oracle.BalanceOracle
	mint       solana.PublicKey
	minimum    decimal.Decimal
	thresholds tier.Thresholds
	resources  TierRequirements
	logger     logger.Logger
	obs        *observability.Observability
}

type Options struct {
	Mint           solana.PublicKey
	MinimumBalance decimal.Decimal
	Thresholds     tier.Thresholds
	Resources      TierRequirements
}

func NewGate(o oracle.BalanceOracle, opts Options, log logger.Logger, obs *observability.Observability) (*Gate, error) {
	if opts.Mint.IsZero() {
		return nil, errors.New("token mint is required")
	}
	if opts.MinimumBalance.IsNegative() {
		return nil, fmt.Errorf("minimum balance must not be negative, got %s", opts.MinimumBalance)
	}
	if err := opts.Thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Gate{
		oracle:     o,
		mint:       opts.Mint,
		minimum:    opts.MinimumBalance,
		thresholds: opts.Thresholds,
		resources:  opts.Resources,
		logger:     logger.ForComponent(log, "access-gate"),
		obs:        obs,
	}, nil
}

// Minimum returns the configured minimum holding.
func (g *Gate) Minimum() decimal.Decimal {
	return g.minimum
}

// Authorize evaluates wallet against the minimum holding and, when
// resourceID carries one, the resource's tier gate. A malformed wallet is a
// rejected decision, not an error; the oracle is never consulted for it.
// Errors are reserved for upstream failures.
func (g *Gate) Authorize(ctx context.Context, walletAddress, resourceID string) (*Decision, error) {
	ctx, span := g.obs.StartSpan(ctx, "access.Authorize", attribute.String("resource_id", resourceID))
	defer span.End()

	wallet, err := solana.ParsePublicKey(walletAddress)
	if err != nil {
		return g.finish(&Decision{
			Reason:  ReasonInvalidAddress,
			Message: "Wallet address is not a valid Solana public key",
			Minimum: g.minimum,
		}), nil
	}

	res, err := g.oracle.GetBalance(ctx, wallet, g.mint)
	if err != nil {
		if errors.Is(err, solana.ErrOwnerOffCurve) || errors.Is(err, solana.ErrInvalidAddress) {
			return g.finish(&Decision{
				Reason:  ReasonInvalidAddress,
				Message: "Wallet address cannot own a token account",
				Wallet:  wallet,
				Minimum: g.minimum,
			}), nil
		}
		span.RecordError(err)
		return nil, err
	}

	d := &Decision{
		Wallet:        wallet,
		Balance:       res.Amount,
		BalanceStatus: res.Status,
		Minimum:       g.minimum,
	}

	if res.Amount.LessThan(g.minimum) {
		d.Reason = ReasonInsufficientBalance
		d.Message = fmt.Sprintf("Insufficient PGT balance: holding %s, minimum required %s", res.Amount, g.minimum)
		return g.finish(d), nil
	}

	d.Tier = g.thresholds.Classify(res.Amount)

	if resourceID != "" && g.resources != nil {
		if required, ok := g.resources.RequiredTier(resourceID); ok {
			d.RequiredTier = required
			d.HasRequirement = true
			if !d.Tier.AtLeast(required) {
				d.Reason = ReasonTierTooLow
				d.Message = fmt.Sprintf("This resource requires %s tier or above; wallet is %s", required, d.Tier)
				return g.finish(d), nil
			}
		}
	}

	d.Authorized = true
	d.Reason = ReasonAuthorized
	d.Message = fmt.Sprintf("Access granted at %s tier", d.Tier)
	return g.finish(d), nil
}

func (g *Gate) finish(d *Decision) *Decision {
	metrics.AccessDecisions.WithLabelValues(string(d.Reason), d.Tier.String()).Inc()

	fields := map[string]interface{}{
		"reason":  string(d.Reason),
		"tier":    d.Tier.String(),
		"balance": d.Balance.String(),
	}
	if !d.Wallet.IsZero() {
		fields["wallet"] = d.Wallet.String()
	}
	g.logger.Debug("access decision", fields)
	return d
}
