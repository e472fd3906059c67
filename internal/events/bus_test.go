package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/events"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

type stubEventStore struct {
	inserted []string
	err      error
}

func (s *stubEventStore) Insert(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (store.DomainEvent, error) {
	if s.err != nil {
		return store.DomainEvent{}, s.err
	}
	s.inserted = append(s.inserted, topic)
	return store.DomainEvent{Topic: topic, AggregateID: aggregateID, Payload: payload}, nil
}

type recordingNotifier struct {
	got []events.Event
	err error
}

func (n *recordingNotifier) Notify(_ context.Context, ev events.Event) error {
	n.got = append(n.got, ev)
	return n.err
}

func TestPublishPersistsAndFansOut(t *testing.T) {
	st := &stubEventStore{}
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	bus := &events.Bus{Store: st, Logger: zerolog.Nop(), Notifiers: []events.Notifier{first, second}}

	orderID := uuid.New()
	if err := bus.Publish(context.Background(), events.TopicOrderPaid, orderID, map[string]string{"invoiceId": "inv-1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(st.inserted) != 1 || st.inserted[0] != events.TopicOrderPaid {
		t.Fatalf("persisted topics = %v", st.inserted)
	}
	if len(first.got) != 1 || len(second.got) != 1 {
		t.Fatalf("fan-out reached %d/%d notifiers, want 1/1", len(first.got), len(second.got))
	}
	if first.got[0].OrderID != orderID {
		t.Fatalf("event order id = %s", first.got[0].OrderID)
	}
}

func TestPublishNotifierFailureDoesNotPropagate(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("chat down")}
	healthy := &recordingNotifier{}
	bus := &events.Bus{Store: &stubEventStore{}, Logger: zerolog.Nop(), Notifiers: []events.Notifier{failing, healthy}}

	if err := bus.Publish(context.Background(), events.TopicOrderCreated, uuid.New(), nil); err != nil {
		t.Fatalf("notifier failure propagated: %v", err)
	}
	if len(healthy.got) != 1 {
		t.Fatalf("later notifier skipped after failure")
	}
}

func TestPublishStoreFailureIsReturned(t *testing.T) {
	notifier := &recordingNotifier{}
	bus := &events.Bus{Store: &stubEventStore{err: errors.New("insert failed")}, Logger: zerolog.Nop(), Notifiers: []events.Notifier{notifier}}

	if err := bus.Publish(context.Background(), events.TopicOrderPaid, uuid.New(), nil); err == nil {
		t.Fatalf("expected persistence error")
	}
	if len(notifier.got) != 0 {
		t.Fatalf("notifier invoked despite persistence failure")
	}
}
