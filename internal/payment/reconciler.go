package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/events"
	"github.com/kvitka-ua/backend-kvitka/internal/money"
	"github.com/kvitka-ua/backend-kvitka/internal/obs"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

// Callback is a verified, decoded gateway webhook.
type Callback struct {
	InvoiceID string
	Status    string
	Amount    money.Amount
	Reason    string
	Raw       []byte
}

// Outcome describes what a processed callback did.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
	OutcomeExpired   Outcome = "expired"
	OutcomeMismatch  Outcome = "amount_mismatch"
	OutcomeReplay    Outcome = "replay"
	OutcomePending   Outcome = "pending"
	OutcomeUnknown   Outcome = "unknown_invoice"
)

// Reconciler applies gateway callbacks to the invoice state machine:
// created moves to confirmed, failed or expired; terminal states absorb any
// further callback for the same invoice.
type Reconciler struct {
	Ledger Ledger
	Bus    *events.Bus
	Logger zerolog.Logger
}

// Process validates the callback, records the raw payload, and applies the
// declared transition. ErrMalformedWebhook means the payload should be
// refused so the gateway retries; ErrUnknownInvoice marks an invoice this
// system never issued and is for callers to acknowledge. Anything else
// resolves to an Outcome.
func (r *Reconciler) Process(ctx context.Context, cb Callback) (Outcome, error) {
	if strings.TrimSpace(cb.InvoiceID) == "" || strings.TrimSpace(cb.Status) == "" {
		return "", ErrMalformedWebhook
	}

	inv, err := r.Ledger.Lookup(ctx, cb.InvoiceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUnknownInvoice, cb.InvoiceID)
		}
		return "", err
	}

	// durable receipt before any transition decision
	if len(cb.Raw) > 0 {
		if err := r.Ledger.RecordPayload(ctx, cb.InvoiceID, cb.Raw); err != nil {
			return "", err
		}
	}

	if inv.Status.Terminal() {
		return OutcomeReplay, nil
	}

	switch normalizeStatus(cb.Status) {
	case "success":
		return r.confirm(ctx, cb)
	case "failure", "reversed":
		if err := r.Ledger.MarkTerminal(ctx, cb.InvoiceID, store.InvoiceStatusFailed); err != nil {
			return "", err
		}
		r.transitioned(store.InvoiceStatusFailed)
		r.publish(ctx, events.TopicPaymentFailed, inv, cb.Reason)
		return OutcomeFailed, nil
	case "expired":
		if err := r.Ledger.MarkTerminal(ctx, cb.InvoiceID, store.InvoiceStatusExpired); err != nil {
			return "", err
		}
		r.transitioned(store.InvoiceStatusExpired)
		r.publish(ctx, events.TopicPaymentExpired, inv, cb.Reason)
		return OutcomeExpired, nil
	default:
		// created, processing, hold: nothing to reconcile yet
		return OutcomePending, nil
	}
}

func (r *Reconciler) confirm(ctx context.Context, cb Callback) (Outcome, error) {
	applied, inv, err := r.Ledger.ConfirmAndPay(ctx, cb.InvoiceID, cb.Amount)
	if err != nil {
		if errors.Is(err, store.ErrAmountMismatch) {
			r.Logger.Error().
				Str("invoice_id", cb.InvoiceID).
				Str("observed", money.Format(cb.Amount)).
				Msg("confirmation amount mismatch, flagging for review")
			if ferr := r.Ledger.FailFlagged(ctx, cb.InvoiceID, err.Error()); ferr != nil {
				return "", ferr
			}
			r.transitioned(store.InvoiceStatusFailed)
			return OutcomeMismatch, nil
		}
		return "", err
	}
	if !applied {
		return OutcomeReplay, nil
	}
	r.transitioned(store.InvoiceStatusConfirmed)
	r.publish(ctx, events.TopicOrderPaid, inv, "")
	return OutcomeConfirmed, nil
}

func (r *Reconciler) publish(ctx context.Context, topic string, inv store.Invoice, reason string) {
	if r.Bus == nil {
		return
	}
	payload := map[string]any{
		"invoiceId": inv.InvoiceID,
		"amount":    money.Format(inv.Amount),
	}
	if reason != "" {
		payload["reason"] = reason
	}
	if err := r.Bus.Publish(ctx, topic, inv.OrderID, payload); err != nil {
		r.Logger.Error().Err(err).Str("topic", topic).
			Str("invoice_id", inv.InvoiceID).Msg("publish event")
	}
}

func (r *Reconciler) transitioned(to store.InvoiceStatus) {
	if obs.InvoiceTransitionTotal != nil {
		obs.InvoiceTransitionTotal.WithLabelValues(string(to)).Inc()
	}
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
