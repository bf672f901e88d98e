// Package tickets allocates uniquely coded tickets from a shared pool with
// an exactly-once guarantee per record.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusClaimed   Status = "claimed"
)

// Record is one ticket. The only legal transition is available -> claimed;
// claimed records are never reset or removed.
type Record struct {
	ID          string     `json:"id"`
	ResourceID  string     `json:"resourceId"`
	Code        string     `json:"code"`
	DisplayName string     `json:"displayName"`
	Status      Status     `json:"status"`
	AssignedTo  string     `json:"assignedTo,omitempty"`
	AssignedAt  *time.Time `json:"assignedAt,omitempty"`
}

// Store-level sentinels.
var (
	// ErrNoneAvailable is returned by FindAvailable when the pool is empty.
	ErrNoneAvailable = errors.New("NONE_AVAILABLE")
	// ErrAbort is returned by a TxFunc to roll back; stores also return it
	// when an optimistic transaction lost a race.
	ErrAbort = errors.New("TX_ABORTED")
	// ErrTicketNotFound means RunTransaction was given an unknown id.
	ErrTicketNotFound = errors.New("TICKET_NOT_FOUND")
)

// ErrIllegalTransition is returned by stores when a TxFunc tries to rewrite
// identity fields or touch an already claimed record.
var ErrIllegalTransition = errors.New("ILLEGAL_TRANSITION")

// CheckTransition enforces the write-once lifecycle on a proposed update.
func CheckTransition(current, next *Record) error {
	if next == nil {
		return fmt.Errorf("%w: nil replacement for %s", ErrIllegalTransition, current.ID)
	}
	if next.ID != current.ID || next.ResourceID != current.ResourceID || next.Code != current.Code {
		return fmt.Errorf("%w: identity of %s changed", ErrIllegalTransition, current.ID)
	}
	if current.Status == StatusClaimed {
		return fmt.Errorf("%w: %s is already claimed", ErrIllegalTransition, current.ID)
	}
	if next.Status != StatusAvailable && next.Status != StatusClaimed {
		return fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, next.Status)
	}
	if next.Status == StatusClaimed && (next.AssignedTo == "" || next.AssignedAt == nil) {
		return fmt.Errorf("%w: claimed record %s needs an assignee and timestamp", ErrIllegalTransition, current.ID)
	}
	return nil
}

// TxFunc receives the record as read inside the transaction and returns the
// replacement to persist, or ErrAbort.
type TxFunc func(current *Record) (*Record, error)

// Store is the boundary every backend implements.
type Store interface {
	// FindAvailable returns some available record for resourceID. The
	// answer is a hint: it may be stale by the time it is confirmed.
	FindAvailable(ctx context.Context, resourceID string) (*Record, error)
	// RunTransaction reads ticketID, applies fn and persists the result
	// atomically, or persists nothing.
	RunTransaction(ctx context.Context, ticketID string, fn TxFunc) (*Record, error)
}

// Inventory is a per-status count for one resource.
type Inventory struct {
	ResourceID string `json:"resourceId"`
	Available  int    `json:"available"`
	Claimed    int    `json:"claimed"`
}

// Admin is implemented by backends that can be provisioned from the
// catalog tool.
type Admin interface {
	// Provision inserts available records for codes, skipping codes that
	// already exist, and returns how many were added.
	Provision(ctx context.Context, resourceID, displayName string, codes []string) (int, error)
	Inventory(ctx context.Context, resourceID string) (Inventory, error)
}

// Pinger is implemented by networked backends for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
