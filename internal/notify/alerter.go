// Package notify sends sold-out inventory alerts.
package notify

import (
	"context"
	"fmt"
	"time"

	"pgt-ticketing/internal/common/logger"
	"pgt-ticketing/internal/common/metrics"
)

// Alerter is told when a resource's pool is exhausted.
type Alerter interface {
	SoldOut(ctx context.Context, resourceID, displayName string) error
}

// Channel delivers one alert message.
type Channel interface {
	Name() string
	Send(ctx context.Context, subject, body string, attrs map[string]string) error
}

// Deduper reports whether key was newly marked; a false result suppresses
// the alert.
type Deduper interface {
	SetOnce(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

type NopAlerter struct{}

func (NopAlerter) SoldOut(context.Context, string, string) error { return nil }

// Notifier fans a sold-out alert out to every channel, at most once per
// resource per TTL when a Deduper is set.
type Notifier struct {
	channels []Channel
	dedupe   Deduper
	ttl      time.Duration
	logger   logger.Logger
	now      func() time.Time
}

func NewNotifier(log logger.Logger, dedupe Deduper, ttl time.Duration, channels ...Channel) *Notifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Notifier{
		channels: channels,
		dedupe:   dedupe,
		ttl:      ttl,
		logger:   logger.ForComponent(log, "notifier"),
		now:      time.Now,
	}
}

func (n *Notifier) SoldOut(ctx context.Context, resourceID, displayName string) error {
	if len(n.channels) == 0 {
		return nil
	}

	if n.dedupe != nil {
		first, err := n.dedupe.SetOnce(ctx, "pgt:alert:sold-out:"+resourceID, n.now().UTC().Format(time.RFC3339), n.ttl)
		if err != nil {
			// Alert anyway; a duplicate is better than silence.
			n.logger.Warn("alert de-duplication failed", map[string]interface{}{
				"resourceId": resourceID,
				"error":      err,
			})
		} else if !first {
			metrics.InventoryAlerts.WithLabelValues("all", "suppressed").Inc()
			return nil
		}
	}

	if displayName == "" {
		displayName = resourceID
	}
	subject := fmt.Sprintf("Sold out: %s", displayName)
	body := fmt.Sprintf("All tickets for %s (%s) have been claimed as of %s.",
		displayName, resourceID, n.now().UTC().Format(time.RFC3339))
	attrs := map[string]string{"resourceId": resourceID, "event": "sold_out"}

	var firstErr error
	for _, ch := range n.channels {
		if err := ch.Send(ctx, subject, body, attrs); err != nil {
			metrics.InventoryAlerts.WithLabelValues(ch.Name(), "failed").Inc()
			n.logger.Error("sold-out alert failed", map[string]interface{}{
				"channel":    ch.Name(),
				"resourceId": resourceID,
				"error":      err,
			})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.InventoryAlerts.WithLabelValues(ch.Name(), "sent").Inc()
	}
	return firstErr
}
