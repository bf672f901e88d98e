package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/common/metrics"
	"pgt-ticketing/internal/common/observability"
)

// Claim outcomes.
var (
	ErrSoldOut          = errors.New("SOLD_OUT")
	ErrClaimConflict    = errors.New("CLAIM_CONFLICT")
	ErrStoreUnavailable = errors.New("STORE_UNAVAILABLE")
)

// Clock returns the assignment timestamp.
type Clock func() time.Time

// UTCClock is the production clock.
func UTCClock() time.Time {
	return time.Now().UTC()
}

// RetryPolicy controls how many times a lost race is re-run from phase 1.
// MaxAttempts of 1 surfaces the first conflict to the caller.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// ClaimResult describes a ticket now assigned to the caller.
type ClaimResult struct {
	TicketID    string
	Code        string
	ResourceID  string
	DisplayName string
	AssignedTo  string
	AssignedAt  time.Time
	Attempts    int
}

type Allocator struct {
	store  Store
	policy RetryPolicy
	clock  Clock
	logger logger.Logger
	obs    *observability.Observability
}

type Option func(*Allocator)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(a *Allocator) {
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		a.policy = p
	}
}

func WithClock(c Clock) Option {
	return func(a *Allocator) {
		if c != nil {
			a.clock = c
		}
	}
}

func WithObservability(obs *observability.Observability) Option {
	return func(a *Allocator) {
		a.obs = obs
	}
}

func NewAllocator(store Store, log logger.Logger, opts ...Option) *Allocator {
	a := &Allocator{
		store:  store,
		policy: DefaultRetryPolicy(),
		clock:  UTCClock,
		logger: logger.ForComponent(log, "allocator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Claim assigns one available ticket of resourceID to wallet.
//
// Phase 1 picks a candidate outside any transaction. Phase 2 re-reads it
// inside a store transaction and flips it to claimed only if it is still
// available. Losing that race is ErrClaimConflict; an empty pool is always
// ErrSoldOut. Balance and tier are not re-checked here.
func (a *Allocator) Claim(ctx context.Context, resourceID, wallet string) (*ClaimResult, error) {
	ctx, span := a.obs.StartSpan(ctx, "tickets.Claim", attribute.String("resource_id", resourceID))
	defer span.End()

	log := a.logger.WithFields(map[string]interface{}{
		"resourceId": resourceID,
		"wallet":     wallet,
	})

	var lastTicket string
	for attempt := 1; attempt <= a.policy.MaxAttempts; attempt++ {
		candidate, err := a.store.FindAvailable(ctx, resourceID)
		if errors.Is(err, ErrNoneAvailable) {
			a.record(ctx, resourceID, "sold_out", attempt)
			log.Info("no tickets available", map[string]interface{}{"attempt": attempt})
			return nil, fmt.Errorf("%w: resource %s", ErrSoldOut, resourceID)
		}
		if err != nil {
			a.record(ctx, resourceID, "store_error", attempt)
			span.RecordError(err)
			log.Error("candidate search failed", map[string]interface{}{"error": err})
			return nil, fmt.Errorf("%w: find available: %v", ErrStoreUnavailable, err)
		}
		lastTicket = candidate.ID

		var assignedAt time.Time
		claimed, err := a.store.RunTransaction(ctx, candidate.ID, func(current *Record) (*Record, error) {
			if current.Status != StatusAvailable {
				return nil, ErrAbort
			}
			assignedAt = a.clock().UTC()
			next := *current
			next.Status = StatusClaimed
			next.AssignedTo = wallet
			next.AssignedAt = &assignedAt
			return &next, nil
		})

		switch {
		case err == nil:
			a.record(ctx, resourceID, "claimed", attempt)
			log.Info("ticket claimed", map[string]interface{}{
				"ticketId": claimed.ID,
				"attempt":  attempt,
			})
			return &ClaimResult{
				TicketID:    claimed.ID,
				Code:        claimed.Code,
				ResourceID:  claimed.ResourceID,
				DisplayName: claimed.DisplayName,
				AssignedTo:  wallet,
				AssignedAt:  assignedAt,
				Attempts:    attempt,
			}, nil

		case errors.Is(err, ErrAbort), errors.Is(err, ErrTicketNotFound):
			log.Debug("lost claim race", map[string]interface{}{
				"ticketId": candidate.ID,
				"attempt":  attempt,
			})
			if attempt < a.policy.MaxAttempts {
				if werr := a.wait(ctx); werr != nil {
					a.record(ctx, resourceID, "conflict", attempt)
					return nil, fmt.Errorf("%w: ticket %s: %v", ErrClaimConflict, candidate.ID, werr)
				}
				continue
			}
			a.record(ctx, resourceID, "conflict", attempt)
			return nil, fmt.Errorf("%w: ticket %s", ErrClaimConflict, candidate.ID)

		default:
			a.record(ctx, resourceID, "store_error", attempt)
			span.RecordError(err)
			log.Error("claim transaction failed", map[string]interface{}{
				"ticketId": candidate.ID,
				"error":    err,
			})
			return nil, fmt.Errorf("%w: transaction: %v", ErrStoreUnavailable, err)
		}
	}

	// only reachable when MaxAttempts was forced below 1
	return nil, fmt.Errorf("%w: ticket %s", ErrClaimConflict, lastTicket)
}

func (a *Allocator) wait(ctx context.Context) error {
	if a.policy.Backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(a.policy.Backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (a *Allocator) record(ctx context.Context, resourceID, outcome string, attempts int) {
	metrics.TicketClaims.WithLabelValues(resourceID, outcome).Inc()
	metrics.TicketClaimAttempts.Observe(float64(attempts))
	a.obs.RecordClaim(ctx, resourceID, outcome)
}
