// Package events persists domain events and fans them out to registered
// notifiers. Delivery is best-effort: a notifier failure is logged and never
// propagated to the publisher.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

const (
	TopicOrderCreated   = "order.created"
	TopicOrderPaid      = "order.paid"
	TopicPaymentFailed  = "payment.failed"
	TopicPaymentExpired = "payment.expired"
)

// Event is what notifiers receive.
type Event struct {
	Topic      string
	OrderID    uuid.UUID
	Payload    json.RawMessage
	OccurredAt time.Time
}

// Notifier consumes a published event.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type eventStore interface {
	Insert(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (store.DomainEvent, error)
}

// Bus records events and dispatches them to notifiers.
type Bus struct {
	Store     eventStore
	Logger    zerolog.Logger
	Notifiers []Notifier
}

// Publish persists the event and hands it to every notifier. Persistence
// failures are returned; notifier failures are only logged.
func (b *Bus) Publish(ctx context.Context, topic string, orderID uuid.UUID, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ev := Event{Topic: topic, OrderID: orderID, Payload: raw, OccurredAt: time.Now()}
	if b.Store != nil {
		stored, err := b.Store.Insert(ctx, topic, orderID, raw)
		if err != nil {
			return err
		}
		ev.OccurredAt = stored.OccurredAt
	}
	for _, n := range b.Notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			b.Logger.Error().Err(err).
				Str("topic", topic).
				Str("order_id", orderID.String()).
				Msg("notifier failed")
		}
	}
	return nil
}
