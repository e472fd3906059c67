package store

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kvitka-ua/backend-kvitka/internal/money"
)

// OrderStatus enumerates the storefront order lifecycle.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusFailed          OrderStatus = "failed"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// InvoiceStatus enumerates gateway invoice states. created is the only
// non-terminal state; confirmed, failed and expired are absorbing.
type InvoiceStatus string

const (
	InvoiceStatusCreated   InvoiceStatus = "created"
	InvoiceStatusConfirmed InvoiceStatus = "confirmed"
	InvoiceStatusFailed    InvoiceStatus = "failed"
	InvoiceStatusExpired   InvoiceStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s InvoiceStatus) Terminal() bool {
	switch s {
	case InvoiceStatusConfirmed, InvoiceStatusFailed, InvoiceStatusExpired:
		return true
	default:
		return false
	}
}

// Order is the storefront order row. The payment core only reads it and
// updates Status.
type Order struct {
	ID              uuid.UUID
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	DeliveryMethod  string
	DeliveryPayload []byte
	PaymentMethod   string
	Status          OrderStatus
	Total           money.Amount
	Currency        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is a line item with a snapshot title taken at order time.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.NullUUID
	Title     string
	Qty       int32
	UnitPrice money.Amount
	Subtotal  money.Amount
}

// Product carries the catalog fields the payment core needs for display names.
type Product struct {
	ID    uuid.UUID
	Title string
	Slug  string
	Price money.Amount
}

// Invoice is the record linking an order to a gateway invoice. At most one
// active invoice exists per order; retries supersede the previous record.
type Invoice struct {
	ID         uuid.UUID
	InvoiceID  string
	OrderID    uuid.UUID
	Amount     money.Amount
	Status     InvoiceStatus
	PageURL    string
	Payload    []byte
	Active     bool
	Flagged    bool
	FlagReason string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DomainEvent is a persisted fan-out event.
type DomainEvent struct {
	ID          uuid.UUID
	Topic       string
	AggregateID uuid.UUID
	Payload     []byte
	OccurredAt  time.Time
}

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrAmountMismatch is returned when a confirmation amount differs from
	// the amount recorded at invoice creation. Security-relevant; never
	// silently corrected.
	ErrAmountMismatch = errors.New("store: amount mismatch")
)
