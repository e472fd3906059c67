package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/events"
	"github.com/kvitka-ua/backend-kvitka/internal/money"
	"github.com/kvitka-ua/backend-kvitka/internal/obs"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

type orderView interface {
	Get(ctx context.Context, id uuid.UUID) (store.Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]store.OrderItem, error)
}

type productView interface {
	Titles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type conversionTracker interface {
	Track(ctx context.Context, conv Conversion) error
}

// Dispatcher turns order events into chat messages and, for paid orders, a
// pixel conversion. It implements the event bus Notifier contract.
type Dispatcher struct {
	Orders   orderView
	Products productView
	Chat     ChatSender
	Pixel    conversionTracker
	Logger   zerolog.Logger
}

// Notify composes and delivers the notification for one event. The chat
// failure is returned so the bus can log it; it never propagates further.
func (d *Dispatcher) Notify(ctx context.Context, ev events.Event) error {
	order, err := d.Orders.Get(ctx, ev.OrderID)
	if err != nil {
		d.count("chat", "error")
		return fmt.Errorf("load order for notification: %w", err)
	}
	items, err := d.Orders.ListItems(ctx, order.ID)
	if err != nil {
		// items are decoration; send what we have
		d.Logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("list items for notification")
		items = nil
	}
	titles := d.resolveTitles(ctx, items)

	text := ComposeMessage(ev.Topic, order, items, titles)
	if err := d.Chat.SendMessage(ctx, text); err != nil {
		d.count("chat", "error")
		return err
	}
	d.count("chat", "success")

	if ev.Topic == events.TopicOrderPaid && d.Pixel != nil {
		conv := Conversion{
			EventName: "Purchase",
			OrderID:   order.ID.String(),
			Value:     money.Format(order.Total),
			Currency:  order.Currency,
		}
		if err := d.Pixel.Track(ctx, conv); err != nil {
			d.count("pixel", "error")
			d.Logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("pixel conversion failed")
		} else {
			d.count("pixel", "success")
		}
	}
	return nil
}

func (d *Dispatcher) resolveTitles(ctx context.Context, items []store.OrderItem) map[string]string {
	if d.Products == nil || len(items) == 0 {
		return nil
	}
	var ids []uuid.UUID
	for _, item := range items {
		if item.ProductID.Valid {
			ids = append(ids, item.ProductID.UUID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	byID, err := d.Products.Titles(ctx, ids)
	if err != nil {
		d.Logger.Warn().Err(err).Msg("resolve product titles")
		return nil
	}
	out := make(map[string]string, len(byID))
	for id, title := range byID {
		out[id.String()] = title
	}
	return out
}

func (d *Dispatcher) count(channel, result string) {
	if obs.NotificationTotal != nil {
		obs.NotificationTotal.WithLabelValues(channel, result).Inc()
	}
}
