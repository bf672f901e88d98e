// Package memstore is an in-process ticket store for development and tests.
package memstore

import (
	"context"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"pgt-ticketing/internal/tickets"
)

// Store keeps records in provisioning order. One mutex serialises every
// transaction, which is the record-level exclusion the allocator relies on.
type Store struct {
	mu      sync.Mutex
	records map[string]*tickets.Record
	order   []string
	codes   map[string]bool
}

func New() *Store {
	return &Store{
		records: make(map[string]*tickets.Record),
		codes:   make(map[string]bool),
	}
}

// FindAvailable picks uniformly among the available records.
func (s *Store) FindAvailable(ctx context.Context, resourceID string) (*tickets.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*tickets.Record
	for _, id := range s.order {
		r := s.records[id]
		if r.ResourceID == resourceID && r.Status == tickets.StatusAvailable {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil, tickets.ErrNoneAvailable
	}
	cp := *candidates[rand.Intn(len(candidates))]
	return &cp, nil
}

func (s *Store) RunTransaction(ctx context.Context, ticketID string, fn tickets.TxFunc) (*tickets.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[ticketID]
	if !ok {
		return nil, tickets.ErrTicketNotFound
	}

	snapshot := *current
	next, err := fn(&snapshot)
	if err != nil {
		return nil, err
	}
	if err := tickets.CheckTransition(current, next); err != nil {
		return nil, err
	}

	stored := *next
	s.records[ticketID] = &stored
	out := stored
	return &out, nil
}

func (s *Store) Provision(ctx context.Context, resourceID, displayName string, codes []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, code := range codes {
		if s.codes[code] {
			continue
		}
		id := uuid.NewString()
		s.records[id] = &tickets.Record{
			ID:          id,
			ResourceID:  resourceID,
			Code:        code,
			DisplayName: displayName,
			Status:      tickets.StatusAvailable,
		}
		s.order = append(s.order, id)
		s.codes[code] = true
		added++
	}
	return added, nil
}

func (s *Store) Inventory(ctx context.Context, resourceID string) (tickets.Inventory, error) {
	inv := tickets.Inventory{ResourceID: resourceID}
	if err := ctx.Err(); err != nil {
		return inv, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ResourceID != resourceID {
			continue
		}
		switch r.Status {
		case tickets.StatusAvailable:
			inv.Available++
		case tickets.StatusClaimed:
			inv.Claimed++
		}
	}
	return inv, nil
}

// Get returns a copy of one record.
func (s *Store) Get(ticketID string) (tickets.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[ticketID]
	if !ok {
		return tickets.Record{}, false
	}
	return *r, true
}

// Records returns copies of all records for resourceID in provisioning order.
func (s *Store) Records(resourceID string) []tickets.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []tickets.Record
	for _, id := range s.order {
		if r := s.records[id]; r.ResourceID == resourceID {
			out = append(out, *r)
		}
	}
	return out
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
