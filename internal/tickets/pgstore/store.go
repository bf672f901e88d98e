// Package pgstore keeps tickets in PostgreSQL and confirms claims under a
// row lock.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pgt-ticketing/internal/common/database"
	"pgt-ticketing/internal/tickets"
)

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	id           TEXT PRIMARY KEY,
	resource_id  TEXT NOT NULL,
	code         TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'claimed')),
	assigned_to  TEXT,
	assigned_at  TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS tickets_resource_status_idx ON tickets (resource_id, status);
`

const (
	// random() spreads concurrent callers over the pool instead of having
	// them all confirm the same row.
	findAvailableQuery = `SELECT id, resource_id, code, display_name, status, assigned_to, assigned_at
		FROM tickets
		WHERE resource_id = $1 AND status = 'available'
		ORDER BY random()
		LIMIT 1`

	lockTicketQuery = `SELECT id, resource_id, code, display_name, status, assigned_to, assigned_at
		FROM tickets
		WHERE id = $1
		FOR UPDATE`

	updateTicketQuery = `UPDATE tickets
		SET status = $2, assigned_to = $3, assigned_at = $4
		WHERE id = $1`

	insertTicketQuery = `INSERT INTO tickets (id, resource_id, code, display_name, status)
		VALUES ($1, $2, $3, $4, 'available')
		ON CONFLICT (code) DO NOTHING`

	inventoryQuery = `SELECT status, COUNT(*)
		FROM tickets
		WHERE resource_id = $1
		GROUP BY status`
)

type Store struct {
	pg *database.PostgresClient
}

func New(pg *database.PostgresClient) *Store {
	return &Store{pg: pg}
}

// EnsureSchema creates the tickets table and its lookup index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pg.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure tickets schema: %w", err)
	}
	return nil
}

func (s *Store) FindAvailable(ctx context.Context, resourceID string) (*tickets.Record, error) {
	rec, err := scanRecord(s.pg.DB.QueryRowContext(ctx, findAvailableQuery, resourceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tickets.ErrNoneAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("find available ticket: %w", err)
	}
	return rec, nil
}

// RunTransaction locks the row with SELECT ... FOR UPDATE, so concurrent
// confirmations of the same ticket serialise and the loser sees it claimed.
func (s *Store) RunTransaction(ctx context.Context, ticketID string, fn tickets.TxFunc) (*tickets.Record, error) {
	var result *tickets.Record

	err := s.pg.WithTx(ctx, nil, func(tx *sql.Tx) error {
		current, err := scanRecord(tx.QueryRowContext(ctx, lockTicketQuery, ticketID))
		if errors.Is(err, sql.ErrNoRows) {
			return tickets.ErrTicketNotFound
		}
		if err != nil {
			return fmt.Errorf("lock ticket: %w", err)
		}

		snapshot := *current
		next, err := fn(&snapshot)
		if err != nil {
			return err
		}
		if err := tickets.CheckTransition(current, next); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, updateTicketQuery,
			next.ID, string(next.Status), nullString(next.AssignedTo), next.AssignedAt,
		); err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}

		result = next
		return nil
	})

	if err != nil {
		if database.IsContention(err) {
			return nil, fmt.Errorf("%w: %v", tickets.ErrAbort, err)
		}
		return nil, err
	}
	return result, nil
}

func (s *Store) Provision(ctx context.Context, resourceID, displayName string, codes []string) (int, error) {
	added := 0

	err := s.pg.WithTx(ctx, nil, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertTicketQuery)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, code := range codes {
			res, err := stmt.ExecContext(ctx, uuid.NewString(), resourceID, code, displayName)
			if err != nil {
				return fmt.Errorf("insert ticket %s: %w", code, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			added += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

func (s *Store) Inventory(ctx context.Context, resourceID string) (tickets.Inventory, error) {
	inv := tickets.Inventory{ResourceID: resourceID}

	rows, err := s.pg.DB.QueryContext(ctx, inventoryQuery, resourceID)
	if err != nil {
		return inv, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return inv, fmt.Errorf("scan inventory: %w", err)
		}
		switch tickets.Status(status) {
		case tickets.StatusAvailable:
			inv.Available = count
		case tickets.StatusClaimed:
			inv.Claimed = count
		}
	}
	return inv, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pg.Ping(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*tickets.Record, error) {
	var (
		rec        tickets.Record
		status     string
		assignedTo sql.NullString
		assignedAt sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.ResourceID, &rec.Code, &rec.DisplayName, &status, &assignedTo, &assignedAt); err != nil {
		return nil, err
	}
	rec.Status = tickets.Status(status)
	if assignedTo.Valid {
		rec.AssignedTo = assignedTo.String
	}
	if assignedAt.Valid {
		ts := assignedAt.Time.UTC()
		rec.AssignedAt = &ts
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
