// Package redisstore keeps tickets in Redis hashes and confirms claims with
// WATCH/MULTI optimistic transactions.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pgt-ticketing/internal/tickets"
)

const (
	fieldID          = "id"
	fieldResourceID  = "resource_id"
	fieldCode        = "code"
	fieldDisplayName = "display_name"
	fieldStatus      = "status"
	fieldAssignedTo  = "assigned_to"
	fieldAssignedAt  = "assigned_at"
)

type Store struct {
	client redis.UniversalClient
	prefix string
}

// New builds a store whose keys all start with prefix (default "pgt").
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "pgt"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) ticketKey(id string) string {
	return fmt.Sprintf("%s:ticket:%s", s.prefix, id)
}

func (s *Store) poolKey(resourceID string, status tickets.Status) string {
	return fmt.Sprintf("%s:tickets:%s:%s", s.prefix, resourceID, status)
}

func (s *Store) codesKey() string {
	return s.prefix + ":ticket-codes"
}

func (s *Store) FindAvailable(ctx context.Context, resourceID string) (*tickets.Record, error) {
	id, err := s.client.SRandMember(ctx, s.poolKey(resourceID, tickets.StatusAvailable)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, tickets.ErrNoneAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("pick available ticket: %w", err)
	}

	fields, err := s.client.HGetAll(ctx, s.ticketKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("read ticket %s: %w", id, err)
	}
	if len(fields) == 0 {
		// Set member without a hash; the caller's transaction will report it.
		return &tickets.Record{ID: id, ResourceID: resourceID, Status: tickets.StatusAvailable}, nil
	}
	return decode(fields)
}

func (s *Store) RunTransaction(ctx context.Context, ticketID string, fn tickets.TxFunc) (*tickets.Record, error) {
	key := s.ticketKey(ticketID)
	var result *tickets.Record

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return tickets.ErrTicketNotFound
		}
		current, err := decode(fields)
		if err != nil {
			return err
		}

		snapshot := *current
		next, err := fn(&snapshot)
		if err != nil {
			return err
		}
		if err := tickets.CheckTransition(current, next); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encode(next))
			if next.Status != current.Status {
				pipe.SMove(ctx,
					s.poolKey(current.ResourceID, current.Status),
					s.poolKey(next.ResourceID, next.Status),
					next.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	if err := s.client.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("%w: %v", tickets.ErrAbort, err)
		}
		return nil, err
	}
	return result, nil
}

// provisionAttempts bounds retries when concurrent provisioning touches the
// code index between WATCH and EXEC.
const provisionAttempts = 3

// Provision skips codes already in the code index. Each code is reserved and
// its ticket written in one WATCH/MULTI transaction, so a failed write leaves
// neither behind.
func (s *Store) Provision(ctx context.Context, resourceID, displayName string, codes []string) (int, error) {
	added := 0
	for _, code := range codes {
		ok, err := s.provisionOne(ctx, resourceID, displayName, code)
		if err != nil {
			return added, fmt.Errorf("store ticket %s: %w", code, err)
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func (s *Store) provisionOne(ctx context.Context, resourceID, displayName, code string) (bool, error) {
	rec := &tickets.Record{
		ID:          uuid.NewString(),
		ResourceID:  resourceID,
		Code:        code,
		DisplayName: displayName,
		Status:      tickets.StatusAvailable,
	}

	var created bool
	txf := func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, s.codesKey(), code).Result()
		if err != nil {
			return err
		}
		if exists {
			created = false
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.codesKey(), code, rec.ID)
			pipe.HSet(ctx, s.ticketKey(rec.ID), encode(rec))
			pipe.SAdd(ctx, s.poolKey(resourceID, tickets.StatusAvailable), rec.ID)
			return nil
		})
		if err != nil {
			return err
		}
		created = true
		return nil
	}

	var err error
	for attempt := 0; attempt < provisionAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, s.codesKey())
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	return created, err
}

func (s *Store) Inventory(ctx context.Context, resourceID string) (tickets.Inventory, error) {
	inv := tickets.Inventory{ResourceID: resourceID}

	pipe := s.client.Pipeline()
	available := pipe.SCard(ctx, s.poolKey(resourceID, tickets.StatusAvailable))
	claimed := pipe.SCard(ctx, s.poolKey(resourceID, tickets.StatusClaimed))
	if _, err := pipe.Exec(ctx); err != nil {
		return inv, fmt.Errorf("count tickets: %w", err)
	}

	inv.Available = int(available.Val())
	inv.Claimed = int(claimed.Val())
	return inv, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func encode(r *tickets.Record) map[string]interface{} {
	m := map[string]interface{}{
		fieldID:          r.ID,
		fieldResourceID:  r.ResourceID,
		fieldCode:        r.Code,
		fieldDisplayName: r.DisplayName,
		fieldStatus:      string(r.Status),
		fieldAssignedTo:  r.AssignedTo,
		fieldAssignedAt:  "",
	}
	if r.AssignedAt != nil {
		m[fieldAssignedAt] = r.AssignedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

func decode(fields map[string]string) (*tickets.Record, error) {
	r := &tickets.Record{
		ID:          fields[fieldID],
		ResourceID:  fields[fieldResourceID],
		Code:        fields[fieldCode],
		DisplayName: fields[fieldDisplayName],
		Status:      tickets.Status(fields[fieldStatus]),
		AssignedTo:  fields[fieldAssignedTo],
	}
	if raw := fields[fieldAssignedAt]; raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("ticket %s: bad assigned_at %q: %w", r.ID, raw, err)
		}
		at = at.UTC()
		r.AssignedAt = &at
	}
	return r, nil
}
