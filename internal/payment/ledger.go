package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kvitka-ua/backend-kvitka/internal/money"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

// Ledger applies invoice transitions together with the linked order update.
// The confirm path must be atomic: the invoice never ends up confirmed while
// the order is still awaiting payment.
type Ledger interface {
	Lookup(ctx context.Context, invoiceID string) (store.Invoice, error)
	RecordPayload(ctx context.Context, invoiceID string, payload []byte) error
	// ConfirmAndPay confirms the invoice and marks the order paid in one
	// transaction. The bool reports whether this call applied the
	// transition; an already confirmed invoice yields (false, nil).
	ConfirmAndPay(ctx context.Context, invoiceID string, observed money.Amount) (bool, store.Invoice, error)
	// FailFlagged moves the invoice to failed and flags it for manual
	// review. The linked order is left untouched.
	FailFlagged(ctx context.Context, invoiceID, reason string) error
	MarkTerminal(ctx context.Context, invoiceID string, to store.InvoiceStatus) error
}

// PGLedger is the pgx-backed Ledger.
type PGLedger struct {
	Pool     *pgxpool.Pool
	Orders   store.Orders
	Invoices store.Invoices
}

func (l PGLedger) Lookup(ctx context.Context, invoiceID string) (store.Invoice, error) {
	return l.Invoices.GetByInvoiceID(ctx, invoiceID)
}

func (l PGLedger) RecordPayload(ctx context.Context, invoiceID string, payload []byte) error {
	return l.Invoices.RecordPayload(ctx, invoiceID, payload)
}

func (l PGLedger) ConfirmAndPay(ctx context.Context, invoiceID string, observed money.Amount) (bool, store.Invoice, error) {
	tx, err := l.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, store.Invoice{}, fmt.Errorf("begin confirm tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	invoices := l.Invoices.WithTx(tx)
	orders := l.Orders.WithTx(tx)

	applied, err := invoices.MarkConfirmed(ctx, invoiceID, observed)
	if err != nil {
		return false, store.Invoice{}, err
	}
	inv, err := invoices.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return false, store.Invoice{}, err
	}
	if applied {
		order, err := orders.Get(ctx, inv.OrderID)
		if err != nil {
			return false, store.Invoice{}, err
		}
		if order.Total != inv.Amount {
			// invoice matches the webhook but not the order it points at
			return false, store.Invoice{}, fmt.Errorf("%w: order total %d invoice %d",
				store.ErrAmountMismatch, order.Total, inv.Amount)
		}
		if err := orders.UpdateStatus(ctx, inv.OrderID, store.OrderStatusPaid); err != nil {
			return false, store.Invoice{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, store.Invoice{}, fmt.Errorf("commit confirm tx: %w", err)
	}
	return applied, inv, nil
}

func (l PGLedger) FailFlagged(ctx context.Context, invoiceID, reason string) error {
	tx, err := l.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin fail tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	invoices := l.Invoices.WithTx(tx)
	if err := invoices.MarkTerminal(ctx, invoiceID, store.InvoiceStatusFailed); err != nil {
		return err
	}
	if err := invoices.Flag(ctx, invoiceID, reason); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return tx.Commit(ctx)
}

func (l PGLedger) MarkTerminal(ctx context.Context, invoiceID string, to store.InvoiceStatus) error {
	return l.Invoices.MarkTerminal(ctx, invoiceID, to)
}
