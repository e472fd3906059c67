// Package order handles storefront order intake and lookup. Inserting an
// order publishes order.created, which drives the operational notification.
package order

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/events"
	"github.com/kvitka-ua/backend-kvitka/internal/money"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

// ItemInput is one requested line item.
type ItemInput struct {
	ProductID string      `json:"productId"`
	Title     string      `json:"title" validate:"required,max=200"`
	Qty       int32       `json:"qty" validate:"required,gt=0,lte=999"`
	UnitPrice json.Number `json:"unitPrice" validate:"required"`
}

// CreateInput is the order intake request.
type CreateInput struct {
	CustomerName   string          `json:"customerName" validate:"required,max=120"`
	CustomerPhone  string          `json:"customerPhone" validate:"required,max=32"`
	CustomerEmail  string          `json:"customerEmail" validate:"omitempty,email"`
	DeliveryMethod string          `json:"deliveryMethod" validate:"required,max=64"`
	Delivery       json.RawMessage `json:"delivery"`
	PaymentMethod  string          `json:"paymentMethod" validate:"required,oneof=card parts cod"`
	Items          []ItemInput     `json:"items" validate:"required,min=1,max=50,dive"`
}

// ItemView is a line item in API responses.
type ItemView struct {
	ProductID string `json:"productId,omitempty"`
	Title     string `json:"title"`
	Qty       int32  `json:"qty"`
	UnitPrice string `json:"unitPrice"`
	Subtotal  string `json:"subtotal"`
}

// View is the order shape returned by the API.
type View struct {
	ID             string          `json:"id"`
	CustomerName   string          `json:"customerName"`
	CustomerPhone  string          `json:"customerPhone"`
	CustomerEmail  string          `json:"customerEmail,omitempty"`
	DeliveryMethod string          `json:"deliveryMethod"`
	Delivery       json.RawMessage `json:"delivery,omitempty"`
	PaymentMethod  string          `json:"paymentMethod"`
	Status         string          `json:"status"`
	Total          string          `json:"total"`
	Currency       string          `json:"currency"`
	Items          []ItemView      `json:"items"`
}

// Service persists orders and publishes the intake event.
type Service struct {
	Pool     *pgxpool.Pool
	Orders   store.Orders
	Bus      *events.Bus
	Logger   zerolog.Logger
	Currency string
}

// Create inserts the order and its items atomically, then publishes
// order.created. The total is computed server-side from the line items.
func (s *Service) Create(ctx context.Context, in CreateInput) (View, error) {
	items := make([]store.OrderItem, 0, len(in.Items))
	var total money.Amount
	for i, raw := range in.Items {
		price, err := money.Parse(raw.UnitPrice.String())
		if err != nil || price <= 0 {
			return View{}, fmt.Errorf("%w: item %d unit price", money.ErrInvalidAmount, i)
		}
		item := store.OrderItem{
			Title:     raw.Title,
			Qty:       raw.Qty,
			UnitPrice: price,
			Subtotal:  price * money.Amount(raw.Qty),
		}
		if raw.ProductID != "" {
			pid, err := uuid.Parse(raw.ProductID)
			if err != nil {
				return View{}, fmt.Errorf("item %d: invalid product identifier", i)
			}
			item.ProductID = uuid.NullUUID{UUID: pid, Valid: true}
		}
		total += item.Subtotal
		items = append(items, item)
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return View{}, fmt.Errorf("begin order tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	orders := s.Orders.WithTx(tx)
	created, err := orders.Create(ctx, store.Order{
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		CustomerEmail:   in.CustomerEmail,
		DeliveryMethod:  in.DeliveryMethod,
		DeliveryPayload: in.Delivery,
		PaymentMethod:   in.PaymentMethod,
		Status:          store.OrderStatusNew,
		Total:           total,
		Currency:        s.Currency,
	})
	if err != nil {
		return View{}, fmt.Errorf("insert order: %w", err)
	}
	for i := range items {
		items[i].OrderID = created.ID
		if _, err := orders.AddItem(ctx, items[i]); err != nil {
			return View{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return View{}, fmt.Errorf("commit order tx: %w", err)
	}

	if s.Bus != nil {
		if err := s.Bus.Publish(ctx, events.TopicOrderCreated, created.ID, map[string]any{
			"total":    money.Format(total),
			"currency": created.Currency,
		}); err != nil {
			s.Logger.Error().Err(err).Str("order_id", created.ID.String()).Msg("publish order.created")
		}
	}
	return toView(created, items), nil
}

// Get returns the order with its line items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (View, error) {
	order, err := s.Orders.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	items, err := s.Orders.ListItems(ctx, id)
	if err != nil {
		return View{}, err
	}
	return toView(order, items), nil
}

func toView(o store.Order, items []store.OrderItem) View {
	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		view := ItemView{
			Title:     item.Title,
			Qty:       item.Qty,
			UnitPrice: money.Format(item.UnitPrice),
			Subtotal:  money.Format(item.Subtotal),
		}
		if item.ProductID.Valid {
			view.ProductID = item.ProductID.UUID.String()
		}
		views = append(views, view)
	}
	return View{
		ID:             o.ID.String(),
		CustomerName:   o.CustomerName,
		CustomerPhone:  o.CustomerPhone,
		CustomerEmail:  o.CustomerEmail,
		DeliveryMethod: o.DeliveryMethod,
		Delivery:       o.DeliveryPayload,
		PaymentMethod:  o.PaymentMethod,
		Status:         string(o.Status),
		Total:          money.Format(o.Total),
		Currency:       o.Currency,
		Items:          views,
	}
}
