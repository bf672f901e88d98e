package issuance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pgt-ticketing/internal/access"
	"pgt-ticketing/internal/catalog"
	apperrors "pgt-ticketing/internal/common/errors"
	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/oracle"
	"pgt-ticketing/internal/tickets"
	"pgt-ticketing/internal/tier"
)

// Gatekeeper is satisfied by *access.Gate.
type Gatekeeper interface {
	Authorize(ctx context.Context, walletAddress, resourceID string) (*access.Decision, error)
}

type HolderResult struct {
	Authorized bool            `json:"authorized"`
	Balance    decimal.Decimal `json:"balance"`
	Minimum    decimal.Decimal `json:"minimum"`
	Tier       string          `json:"tier,omitempty"`
}

type ClaimRequest struct {
	WalletAddress string `json:"walletAddress"`
	ResourceID    string `json:"resourceId"`
	// Tier is what the client believes it holds; the server recomputes it.
	Tier string `json:"tier,omitempty"`
}

type ClaimResponse struct {
	TicketCode   string    `json:"ticketCode"`
	TicketID     string    `json:"ticketId"`
	ResourceID   string    `json:"resourceId"`
	ResourceName string    `json:"resourceName"`
	Tier         string    `json:"tier"`
	AssignedAt   time.Time `json:"assignedAt"`
}

type PassRequest struct {
	WalletAddress string `json:"walletAddress"`
	Tier          string `json:"tier,omitempty"`
	ResourceID    string `json:"resourceId,omitempty"`
}

type PassResponse struct {
	PassID        string    `json:"passId"`
	TicketPayload string    `json:"ticketPayload"`
	ExpiresAt     time.Time `json:"expiresAt"`
	Tier          string    `json:"tier"`
}

// Service is the single entry point for the HTTP handlers and job workers.
// Every error it returns is a *apperrors.StandardError.
type Service struct {
	gate   Gatekeeper
	issuer Issuer
	logger logger.Logger
}

func NewService(gate Gatekeeper, issuer Issuer, log logger.Logger) *Service {
	return &Service{
		gate:   gate,
		issuer: issuer,
		logger: logger.ForComponent(log, "issuance"),
	}
}

// Mode reports which issuance route is active.
func (s *Service) Mode() Mode {
	return s.issuer.Mode()
}

// CheckHolder applies only the minimum-holding rule. An insufficient
// balance returns both the result and an INSUFFICIENT_BALANCE error.
func (s *Service) CheckHolder(ctx context.Context, walletAddress string) (*HolderResult, error) {
	if strings.TrimSpace(walletAddress) == "" {
		return nil, apperrors.NewInvalidInputError("walletAddress is required")
	}

	d, err := s.gate.Authorize(ctx, walletAddress, "")
	if err != nil {
		return nil, s.translate(err, "")
	}

	res := &HolderResult{
		Authorized: d.Authorized,
		Balance:    d.Balance,
		Minimum:    d.Minimum,
	}
	if d.Authorized {
		res.Tier = d.Tier.String()
		return res, nil
	}
	return res, rejection(d)
}

func (s *Service) Claim(ctx context.Context, req ClaimRequest) (*ClaimResponse, error) {
	if s.issuer.Mode() != ModeDurable {
		return nil, apperrors.NewIssuanceUnavailableError(string(s.issuer.Mode()))
	}
	if strings.TrimSpace(req.WalletAddress) == "" || strings.TrimSpace(req.ResourceID) == "" {
		return nil, apperrors.NewInvalidInputError("walletAddress and resourceId are required")
	}

	resourceID := catalog.NormalizeID(req.ResourceID)
	d, err := s.gate.Authorize(ctx, req.WalletAddress, resourceID)
	if err != nil {
		return nil, s.translate(err, resourceID)
	}
	if !d.Authorized {
		return nil, rejection(d)
	}
	s.checkAdvisoryTier(req.Tier, d)

	out, err := s.issuer.Issue(ctx, Grant{ResourceID: resourceID, Decision: d})
	if err != nil {
		return nil, s.translate(err, resourceID)
	}

	t := out.Ticket
	return &ClaimResponse{
		TicketCode:   t.Code,
		TicketID:     t.TicketID,
		ResourceID:   t.ResourceID,
		ResourceName: t.DisplayName,
		Tier:         d.Tier.String(),
		AssignedAt:   t.AssignedAt,
	}, nil
}

// GeneratePass backs the degraded route. A resourceId, when given, is
// gated like a claim.
func (s *Service) GeneratePass(ctx context.Context, req PassRequest) (*PassResponse, error) {
	if s.issuer.Mode() != ModeDegraded {
		return nil, apperrors.NewIssuanceUnavailableError(string(s.issuer.Mode()))
	}
	if strings.TrimSpace(req.WalletAddress) == "" {
		return nil, apperrors.NewInvalidInputError("walletAddress is required")
	}

	resourceID := catalog.NormalizeID(req.ResourceID)
	d, err := s.gate.Authorize(ctx, req.WalletAddress, resourceID)
	if err != nil {
		return nil, s.translate(err, resourceID)
	}
	if !d.Authorized {
		return nil, rejection(d)
	}
	s.checkAdvisoryTier(req.Tier, d)

	out, err := s.issuer.Issue(ctx, Grant{ResourceID: resourceID, Decision: d})
	if err != nil {
		return nil, s.translate(err, resourceID)
	}

	return &PassResponse{
		PassID:        out.Pass.PassID,
		TicketPayload: out.Payload,
		ExpiresAt:     out.Pass.ExpiresAt,
		Tier:          out.Pass.Tier,
	}, nil
}

func (s *Service) checkAdvisoryTier(claimed string, d *access.Decision) {
	if claimed == "" {
		return
	}
	t, err := tier.ParseTier(claimed)
	if err == nil && t == d.Tier {
		return
	}
	s.logger.Debug("client tier differs from computed tier", map[string]interface{}{
		"clientTier": claimed,
		"tier":       d.Tier.String(),
		"wallet":     d.Wallet.String(),
	})
}

func rejection(d *access.Decision) *apperrors.StandardError {
	switch d.Reason {
	case access.ReasonInvalidAddress:
		return apperrors.NewInvalidAddressError(d.Message)
	case access.ReasonInsufficientBalance:
		return apperrors.NewInsufficientBalanceError(d.Balance.String(), d.Minimum.String())
	case access.ReasonTierTooLow:
		return apperrors.NewTierTooLowError(d.RequiredTier.String(), d.Tier.String())
	default:
		return apperrors.NewInternalError(errors.New("unexpected decision reason " + string(d.Reason)))
	}
}

func (s *Service) translate(err error, resourceID string) *apperrors.StandardError {
	var std *apperrors.StandardError
	switch {
	case errors.As(err, &std):
		return std
	case errors.Is(err, tickets.ErrSoldOut):
		return apperrors.NewSoldOutError(resourceID)
	case errors.Is(err, tickets.ErrClaimConflict):
		return apperrors.NewClaimConflictError("")
	case errors.Is(err, tickets.ErrStoreUnavailable):
		s.logger.Error("ticket store unavailable", map[string]interface{}{"error": err})
		return apperrors.NewStoreUnavailableError(err)
	case errors.Is(err, oracle.ErrTimeout):
		s.logger.Error("balance lookup timed out", map[string]interface{}{"error": err})
		return apperrors.NewOracleTimeoutError(err)
	case errors.Is(err, oracle.ErrUnavailable):
		s.logger.Error("balance oracle unavailable", map[string]interface{}{"error": err})
		return apperrors.NewOracleUnavailableError(err)
	default:
		s.logger.Error("issuance failed", map[string]interface{}{"error": err})
		return apperrors.NewInternalError(err)
	}
}
