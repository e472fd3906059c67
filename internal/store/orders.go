package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Orders persists storefront orders and their line items.
type Orders struct {
	DB Querier
}

// WithTx returns a copy of the store bound to the provided transaction.
func (s Orders) WithTx(tx pgx.Tx) Orders {
	return Orders{DB: tx}
}

const orderColumns = `id, customer_name, customer_phone, customer_email, delivery_method,
	delivery_payload, payment_method, status, total, currency, created_at, updated_at`

// Create inserts a new order row.
func (s Orders) Create(ctx context.Context, o Order) (Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = OrderStatusNew
	}
	row := s.DB.QueryRow(ctx, `
		INSERT INTO orders (id, customer_name, customer_phone, customer_email, delivery_method,
			delivery_payload, payment_method, status, total, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+orderColumns,
		o.ID, o.CustomerName, o.CustomerPhone, o.CustomerEmail, o.DeliveryMethod,
		o.DeliveryPayload, o.PaymentMethod, o.Status, o.Total, o.Currency)
	return scanOrder(row)
}

// Get returns the order with the provided identifier.
func (s Orders) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	return order, nil
}

// UpdateStatus moves an order to a new status.
func (s Orders) UpdateStatus(ctx context.Context, id uuid.UUID, status OrderStatus) error {
	tag, err := s.DB.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddItem inserts a line item for an order.
func (s Orders) AddItem(ctx context.Context, item OrderItem) (OrderItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO order_items (id, order_id, product_id, title, qty, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.OrderID, item.ProductID, item.Title, item.Qty, item.UnitPrice, item.Subtotal)
	if err != nil {
		return OrderItem{}, fmt.Errorf("insert order item: %w", err)
	}
	return item, nil
}

// ListItems returns all line items for an order.
func (s Orders) ListItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id, product_id, title, qty, unit_price, subtotal
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Title, &it.Qty, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &o.DeliveryMethod,
		&o.DeliveryPayload, &o.PaymentMethod, &o.Status, &o.Total, &o.Currency, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	return o, nil
}
