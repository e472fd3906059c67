package notify_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/events"
	"github.com/kvitka-ua/backend-kvitka/internal/notify"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

type stubOrderView struct {
	order    store.Order
	items    []store.OrderItem
	itemsErr error
}

func (v *stubOrderView) Get(_ context.Context, id uuid.UUID) (store.Order, error) {
	if id != v.order.ID {
		return store.Order{}, store.ErrNotFound
	}
	return v.order, nil
}

func (v *stubOrderView) ListItems(_ context.Context, _ uuid.UUID) ([]store.OrderItem, error) {
	if v.itemsErr != nil {
		return nil, v.itemsErr
	}
	return v.items, nil
}

type stubProductView struct {
	titles map[uuid.UUID]string
}

func (v *stubProductView) Titles(_ context.Context, _ []uuid.UUID) (map[uuid.UUID]string, error) {
	return v.titles, nil
}

type stubChat struct {
	sent []string
	err  error
}

func (c *stubChat) SendMessage(_ context.Context, text string) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, text)
	return nil
}

type stubPixel struct {
	tracked []notify.Conversion
	err     error
}

func (p *stubPixel) Track(_ context.Context, conv notify.Conversion) error {
	if p.err != nil {
		return p.err
	}
	p.tracked = append(p.tracked, conv)
	return nil
}

func testOrder(productID uuid.UUID) (store.Order, []store.OrderItem) {
	order := store.Order{
		ID:              uuid.New(),
		CustomerName:    "Оксана",
		CustomerPhone:   "+380501112233",
		DeliveryMethod:  "nova_poshta",
		DeliveryPayload: []byte(`{"city":"Київ","warehouse":"12"}`),
		Total:           10050,
		Currency:        "UAH",
		Status:          store.OrderStatusPaid,
	}
	items := []store.OrderItem{
		{OrderID: order.ID, ProductID: uuid.NullUUID{UUID: productID, Valid: true}, Title: "Букет (знімок)", Qty: 1, Subtotal: 10050},
	}
	return order, items
}

func TestNotifySendsChatAndPixelForPaidOrder(t *testing.T) {
	productID := uuid.New()
	order, items := testOrder(productID)
	chat := &stubChat{}
	pixel := &stubPixel{}
	d := &notify.Dispatcher{
		Orders:   &stubOrderView{order: order, items: items},
		Products: &stubProductView{titles: map[uuid.UUID]string{productID: "Букет «Весна»"}},
		Chat:     chat,
		Pixel:    pixel,
		Logger:   zerolog.Nop(),
	}

	if err := d.Notify(context.Background(), events.Event{Topic: events.TopicOrderPaid, OrderID: order.ID}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(chat.sent) != 1 {
		t.Fatalf("chat messages = %d, want 1", len(chat.sent))
	}
	msg := chat.sent[0]
	if !strings.Contains(msg, "Букет «Весна»") {
		t.Fatalf("live catalog title not used: %s", msg)
	}
	if !strings.Contains(msg, "Оксана") || !strings.Contains(msg, "100.50 UAH") {
		t.Fatalf("message missing order details: %s", msg)
	}
	if !strings.Contains(msg, "місто: Київ") {
		t.Fatalf("address line missing: %s", msg)
	}
	if len(pixel.tracked) != 1 {
		t.Fatalf("conversions = %d, want 1", len(pixel.tracked))
	}
	conv := pixel.tracked[0]
	if conv.EventName != "Purchase" || conv.Value != "100.50" || conv.Currency != "UAH" {
		t.Fatalf("unexpected conversion %+v", conv)
	}
}

func TestNotifyCreatedOrderSkipsPixel(t *testing.T) {
	productID := uuid.New()
	order, items := testOrder(productID)
	chat := &stubChat{}
	pixel := &stubPixel{}
	d := &notify.Dispatcher{
		Orders: &stubOrderView{order: order, items: items},
		Chat:   chat,
		Pixel:  pixel,
		Logger: zerolog.Nop(),
	}

	if err := d.Notify(context.Background(), events.Event{Topic: events.TopicOrderCreated, OrderID: order.ID}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(pixel.tracked) != 0 {
		t.Fatalf("pixel tracked for unpaid order")
	}
}

func TestNotifyFallsBackToSnapshotTitle(t *testing.T) {
	productID := uuid.New()
	order, items := testOrder(productID)
	chat := &stubChat{}
	d := &notify.Dispatcher{
		Orders:   &stubOrderView{order: order, items: items},
		Products: &stubProductView{titles: map[uuid.UUID]string{}},
		Chat:     chat,
		Logger:   zerolog.Nop(),
	}

	if err := d.Notify(context.Background(), events.Event{Topic: events.TopicOrderPaid, OrderID: order.ID}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !strings.Contains(chat.sent[0], "Букет (знімок)") {
		t.Fatalf("snapshot title not used: %s", chat.sent[0])
	}
}

func TestNotifyChatFailureIsReturned(t *testing.T) {
	productID := uuid.New()
	order, items := testOrder(productID)
	d := &notify.Dispatcher{
		Orders: &stubOrderView{order: order, items: items},
		Chat:   &stubChat{err: errors.New("telegram down")},
		Logger: zerolog.Nop(),
	}

	if err := d.Notify(context.Background(), events.Event{Topic: events.TopicOrderPaid, OrderID: order.ID}); err == nil {
		t.Fatalf("expected chat failure to be returned")
	}
}

func TestNotifyPixelFailureIsSwallowed(t *testing.T) {
	productID := uuid.New()
	order, items := testOrder(productID)
	chat := &stubChat{}
	d := &notify.Dispatcher{
		Orders: &stubOrderView{order: order, items: items},
		Chat:   chat,
		Pixel:  &stubPixel{err: errors.New("pixel api down")},
		Logger: zerolog.Nop(),
	}

	if err := d.Notify(context.Background(), events.Event{Topic: events.TopicOrderPaid, OrderID: order.ID}); err != nil {
		t.Fatalf("pixel failure propagated: %v", err)
	}
	if len(chat.sent) != 1 {
		t.Fatalf("chat message not sent")
	}
}

func TestNotifyItemListFailureStillSends(t *testing.T) {
	productID := uuid.New()
	order, _ := testOrder(productID)
	chat := &stubChat{}
	d := &notify.Dispatcher{
		Orders: &stubOrderView{order: order, itemsErr: errors.New("db timeout")},
		Chat:   chat,
		Logger: zerolog.Nop(),
	}

	if err := d.Notify(context.Background(), events.Event{Topic: events.TopicOrderPaid, OrderID: order.ID}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(chat.sent) != 1 {
		t.Fatalf("chat message not sent despite item failure")
	}
}
