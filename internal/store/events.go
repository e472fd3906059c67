package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Events persists domain events emitted by the bus.
type Events struct {
	DB Querier
}

// Insert records a domain event and returns the stored row.
func (s Events) Insert(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (DomainEvent, error) {
	ev := DomainEvent{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
	}
	row := s.DB.QueryRow(ctx, `
		INSERT INTO domain_events (id, topic, aggregate_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING occurred_at`,
		ev.ID, ev.Topic, ev.AggregateID, ev.Payload)
	var occurred time.Time
	if err := row.Scan(&occurred); err != nil {
		return DomainEvent{}, fmt.Errorf("insert domain event: %w", err)
	}
	ev.OccurredAt = occurred
	return ev, nil
}
