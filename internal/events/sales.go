// Package events consumes "sale recorded" events and feeds them to the
// scheduler. Delivery is at-least-once; the scheduler's sale-id window
// absorbs redelivery.
package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/flipstack/sync-service/internal/engine"
	"github.com/flipstack/sync-service/internal/scheduler"
)

// DefaultSubject is the subject sale events are published on.
const DefaultSubject = "sales.recorded"

// SaleConsumer subscribes to sale events on NATS.
type SaleConsumer struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	sched   *scheduler.Scheduler
	subject string
	logger  zerolog.Logger
}

// NewSaleConsumer connects to NATS.
func NewSaleConsumer(url, subject string, sched *scheduler.Scheduler) (*SaleConsumer, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, err
	}
	return &SaleConsumer{
		conn:    conn,
		sched:   sched,
		subject: subject,
		logger:  log.With().Str("component", "sale_consumer").Logger(),
	}, nil
}

// Start subscribes to the sale subject.
func (c *SaleConsumer) Start() error {
	sub, err := c.conn.Subscribe(c.subject, c.handle)
	if err != nil {
		return err
	}
	c.sub = sub
	c.logger.Info().Str("subject", c.subject).Msg("Listening for sale events")
	return nil
}

func (c *SaleConsumer) handle(msg *nats.Msg) {
	var event engine.SaleEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logger.Error().Err(err).Msg("Malformed sale event, dropping")
		return
	}

	c.logger.Debug().
		Str("sale_id", event.SaleID).
		Str("listing_id", event.ListingID).
		Int("quantity_sold", event.QuantitySold).
		Msg("Sale event received")

	c.sched.NotifySale(event)
}

// Close unsubscribes and drops the connection.
func (c *SaleConsumer) Close() {
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	c.conn.Close()
}
