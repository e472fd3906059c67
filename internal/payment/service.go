package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/gateway"
	"github.com/kvitka-ua/backend-kvitka/internal/money"
	"github.com/kvitka-ua/backend-kvitka/internal/obs"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

type gatewayAPI interface {
	CreateInvoice(ctx context.Context, req gateway.CreateInvoiceRequest) (gateway.Invoice, error)
}

type orderStore interface {
	Get(ctx context.Context, id uuid.UUID) (store.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status store.OrderStatus) error
}

type invoiceStore interface {
	Put(ctx context.Context, inv store.Invoice) (store.Invoice, error)
	GetActiveByOrder(ctx context.Context, orderID uuid.UUID) (store.Invoice, error)
}

// IntentResult is the public response for a created intent.
type IntentResult struct {
	InvoiceID string `json:"invoiceId"`
	PageURL   string `json:"pageUrl"`
	Amount    string `json:"amount"`
}

// StatusResult is the public response for an order's payment status.
type StatusResult struct {
	OrderID   string `json:"orderId"`
	InvoiceID string `json:"invoiceId"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Flagged   bool   `json:"flagged,omitempty"`
}

// Service orchestrates intent creation: validate, check the order, call the
// gateway, persist the invoice record.
type Service struct {
	Gateway    gatewayAPI
	Orders     orderStore
	Invoices   invoiceStore
	Builder    *Builder
	Logger     zerolog.Logger
	Currency   string
	WebhookURL string
	IntentTTL  time.Duration
}

// CreateIntent runs the full intent flow for the given action. Build failures
// never reach the gateway.
func (s *Service) CreateIntent(ctx context.Context, action string, in IntentInput) (IntentResult, error) {
	intent, err := s.Builder.Build(action, in)
	if err != nil {
		s.countIntent(action, "rejected")
		return IntentResult{}, err
	}
	orderID, err := uuid.Parse(intent.OrderID)
	if err != nil {
		s.countIntent(action, "rejected")
		return IntentResult{}, newValidationError("orderId", "must be a valid order identifier")
	}
	order, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		s.countIntent(action, "error")
		return IntentResult{}, err
	}
	if order.Status != store.OrderStatusNew && order.Status != store.OrderStatusAwaitingPayment {
		s.countIntent(action, "rejected")
		return IntentResult{}, newValidationError("orderId", fmt.Sprintf("order is %s and cannot be paid", order.Status))
	}
	if intent.Amount != order.Total {
		s.countIntent(action, "rejected")
		return IntentResult{}, newValidationError("amount", "does not match the order total")
	}

	req := gateway.CreateInvoiceRequest{
		OrderID:     order.ID.String(),
		Amount:      intent.Amount,
		Currency:    s.Currency,
		RedirectURL: intent.RedirectURL,
		WebhookURL:  s.WebhookURL,
		Destination: intent.Description,
		ValiditySec: int64(s.IntentTTL.Seconds()),
		PartsCount:  intent.PartsCount,
	}
	created, err := s.Gateway.CreateInvoice(ctx, req)
	if err != nil {
		s.countIntent(action, "gateway_error")
		return IntentResult{}, err
	}

	if _, err := s.Invoices.Put(ctx, store.Invoice{
		InvoiceID: created.InvoiceID,
		OrderID:   order.ID,
		Amount:    intent.Amount,
		Status:    store.InvoiceStatusCreated,
		PageURL:   created.PageURL,
	}); err != nil {
		s.countIntent(action, "error")
		return IntentResult{}, fmt.Errorf("persist invoice record: %w", err)
	}
	if order.Status == store.OrderStatusNew {
		if err := s.Orders.UpdateStatus(ctx, order.ID, store.OrderStatusAwaitingPayment); err != nil {
			s.countIntent(action, "error")
			return IntentResult{}, err
		}
	}
	s.countIntent(action, "success")
	s.Logger.Info().
		Str("order_id", order.ID.String()).
		Str("invoice_id", created.InvoiceID).
		Str("mode", string(intent.Mode)).
		Msg("payment intent created")
	return IntentResult{
		InvoiceID: created.InvoiceID,
		PageURL:   created.PageURL,
		Amount:    money.Format(intent.Amount),
	}, nil
}

// Status returns the active invoice state for an order.
func (s *Service) Status(ctx context.Context, orderID uuid.UUID) (StatusResult, error) {
	inv, err := s.Invoices.GetActiveByOrder(ctx, orderID)
	if err != nil {
		return StatusResult{}, err
	}
	return StatusResult{
		OrderID:   orderID.String(),
		InvoiceID: inv.InvoiceID,
		Status:    string(inv.Status),
		Amount:    money.Format(inv.Amount),
		Flagged:   inv.Flagged,
	}, nil
}

func (s *Service) countIntent(action, result string) {
	if obs.PaymentIntentTotal == nil {
		return
	}
	obs.PaymentIntentTotal.WithLabelValues(action, result).Inc()
}
