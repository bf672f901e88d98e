// Package audit records successful ticket claims in a searchable index.
package audit

import (
	"context"
	"time"

	"pgt-ticketing/internal/common/logger"
)

// ClaimEvent is one ticket assignment.
type ClaimEvent struct {
	TicketID     string    `json:"ticketId"`
	ResourceID   string    `json:"resourceId"`
	ResourceName string    `json:"resourceName"`
	Code         string    `json:"code"`
	Wallet       string    `json:"wallet"`
	Tier         string    `json:"tier"`
	Balance      string    `json:"balance"`
	Attempts     int       `json:"attempts"`
	AssignedAt   time.Time `json:"assignedAt"`
}

type Sink interface {
	Record(ctx context.Context, ev ClaimEvent) error
}

type NopSink struct{}

func (NopSink) Record(context.Context, ClaimEvent) error { return nil }

// Indexer is satisfied by database.ElasticsearchClient.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

// ElasticsearchSink writes one document per claim keyed by ticket id, so a
// replayed event overwrites instead of duplicating.
type ElasticsearchSink struct {
	indexer Indexer
	index   string
	logger  logger.Logger
}

func NewElasticsearchSink(indexer Indexer, index string, log logger.Logger) *ElasticsearchSink {
	if index == "" {
		index = "ticket-claims"
	}
	return &ElasticsearchSink{
		indexer: indexer,
		index:   index,
		logger:  logger.ForComponent(log, "audit"),
	}
}

func (s *ElasticsearchSink) Record(ctx context.Context, ev ClaimEvent) error {
	if err := s.indexer.IndexDocument(ctx, s.index, ev.TicketID, ev); err != nil {
		s.logger.Warn("claim audit write failed", map[string]interface{}{
			"ticketId":   ev.TicketID,
			"resourceId": ev.ResourceID,
			"error":      err,
		})
		return err
	}
	return nil
}
