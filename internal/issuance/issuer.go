// Package issuance turns an authorized access decision into something the
// visitor can present at the door: a durable ticket code or, when no store
// is configured, a short-lived access pass.
package issuance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pgt-ticketing/internal/access"
	"pgt-ticketing/internal/audit"
	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/common/metrics"
	"pgt-ticketing/internal/notify"
	"pgt-ticketing/internal/tickets"
)

type Mode string

const (
	ModeDurable  Mode = "durable"
	ModeDegraded Mode = "degraded"
)

// Grant is an authorized request handed to an issuer.
type Grant struct {
	ResourceID string
	Decision   *access.Decision
}

// Issuance is the result of either strategy; exactly one of Ticket and Pass
// is set.
type Issuance struct {
	Mode   Mode
	Ticket *tickets.ClaimResult
	Pass   *AccessPass
	// Payload is the serialised pass for the client to encode as a QR code.
	Payload string
}

type Issuer interface {
	Mode() Mode
	Issue(ctx context.Context, g Grant) (*Issuance, error)
}

// Claimer is satisfied by *tickets.Allocator.
type Claimer interface {
	Claim(ctx context.Context, resourceID, wallet string) (*tickets.ClaimResult, error)
}

// DisplayNames is satisfied by *catalog.Catalog.
type DisplayNames interface {
	DisplayName(resourceID string) string
}

// DurableIssuer assigns a stored ticket record through the allocator.
type DurableIssuer struct {
	claimer Claimer
	names   DisplayNames
	audit   audit.Sink
	alerter notify.Alerter
	logger  logger.Logger
}

func NewDurableIssuer(claimer Claimer, names DisplayNames, sink audit.Sink, alerter notify.Alerter, log logger.Logger) *DurableIssuer {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if alerter == nil {
		alerter = notify.NopAlerter{}
	}
	return &DurableIssuer{
		claimer: claimer,
		names:   names,
		audit:   sink,
		alerter: alerter,
		logger:  logger.ForComponent(log, "durable-issuer"),
	}
}

func (d *DurableIssuer) Mode() Mode { return ModeDurable }

// Issue claims one ticket. Audit and sold-out alerts are best effort and
// never change the outcome.
func (d *DurableIssuer) Issue(ctx context.Context, g Grant) (*Issuance, error) {
	wallet := g.Decision.Wallet.String()

	res, err := d.claimer.Claim(ctx, g.ResourceID, wallet)
	if err != nil {
		if errors.Is(err, tickets.ErrSoldOut) {
			if aerr := d.alerter.SoldOut(ctx, g.ResourceID, d.displayName(g.ResourceID, "")); aerr != nil {
				d.logger.Warn("sold-out alert not delivered", map[string]interface{}{
					"resourceId": g.ResourceID,
					"error":      aerr,
				})
			}
		}
		return nil, err
	}

	res.DisplayName = d.displayName(g.ResourceID, res.DisplayName)

	ev := audit.ClaimEvent{
		TicketID:     res.TicketID,
		ResourceID:   res.ResourceID,
		ResourceName: res.DisplayName,
		Code:         res.Code,
		Wallet:       wallet,
		Tier:         g.Decision.Tier.String(),
		Balance:      g.Decision.Balance.String(),
		Attempts:     res.Attempts,
		AssignedAt:   res.AssignedAt,
	}
	if err := d.audit.Record(ctx, ev); err != nil {
		d.logger.Warn("claim not audited", map[string]interface{}{
			"ticketId": res.TicketID,
			"error":    err,
		})
	}

	return &Issuance{Mode: ModeDurable, Ticket: res}, nil
}

// displayName prefers the catalog name, then the name stored on the record,
// then the id.
func (d *DurableIssuer) displayName(resourceID, stored string) string {
	if d.names != nil {
		if name := d.names.DisplayName(resourceID); name != "" && name != resourceID {
			return name
		}
	}
	if stored != "" {
		return stored
	}
	return resourceID
}

// AccessPass is the degraded-mode payload. It carries no signature and is
// not unique; anyone holding it can present it until ExpiresAt.
type AccessPass struct {
	PassID      string    `json:"passId"`
	Wallet      string    `json:"wallet"`
	Tier        string    `json:"tier"`
	ResourceTag string    `json:"resourceTag"`
	ResourceID  string    `json:"resourceId,omitempty"`
	IssuedAt    time.Time `json:"issuedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// EphemeralIssuer mints passes without touching any store.
type EphemeralIssuer struct {
	ttl         time.Duration
	resourceTag string
	clock       tickets.Clock
	newID       func() string
	logger      logger.Logger
}

func NewEphemeralIssuer(ttl time.Duration, resourceTag string, clock tickets.Clock, log logger.Logger) *EphemeralIssuer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if clock == nil {
		clock = tickets.UTCClock
	}
	return &EphemeralIssuer{
		ttl:         ttl,
		resourceTag: resourceTag,
		clock:       clock,
		newID:       uuid.NewString,
		logger:      logger.ForComponent(log, "ephemeral-issuer"),
	}
}

func (e *EphemeralIssuer) Mode() Mode { return ModeDegraded }

func (e *EphemeralIssuer) Issue(_ context.Context, g Grant) (*Issuance, error) {
	now := e.clock().UTC()
	pass := &AccessPass{
		PassID:      e.newID(),
		Wallet:      g.Decision.Wallet.String(),
		Tier:        g.Decision.Tier.String(),
		ResourceTag: e.resourceTag,
		ResourceID:  g.ResourceID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(e.ttl),
	}

	raw, err := json.Marshal(pass)
	if err != nil {
		return nil, fmt.Errorf("encode access pass: %w", err)
	}

	metrics.PassesIssued.WithLabelValues(pass.Tier).Inc()
	e.logger.Info("access pass issued", map[string]interface{}{
		"passId":    pass.PassID,
		"tier":      pass.Tier,
		"expiresAt": pass.ExpiresAt,
	})
	return &Issuance{Mode: ModeDegraded, Pass: pass, Payload: string(raw)}, nil
}
