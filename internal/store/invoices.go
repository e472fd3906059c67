package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kvitka-ua/backend-kvitka/internal/money"
)

// Invoices persists the order ↔ gateway invoice mapping. Records are never
// deleted; a retry after failure supersedes the previous active record.
type Invoices struct {
	DB Querier
}

// WithTx returns a copy of the store bound to the provided transaction.
func (s Invoices) WithTx(tx pgx.Tx) Invoices {
	return Invoices{DB: tx}
}

const invoiceColumns = `id, invoice_id, order_id, amount, status, page_url, payload,
	active, flagged, flag_reason, created_at, updated_at`

// Put creates the active invoice record for an order, superseding any
// previous active record for the same order.
func (s Invoices) Put(ctx context.Context, inv Invoice) (Invoice, error) {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.Status == "" {
		inv.Status = InvoiceStatusCreated
	}
	if _, err := s.DB.Exec(ctx, `
		UPDATE invoices SET active = FALSE, updated_at = now()
		WHERE order_id = $1 AND active`, inv.OrderID); err != nil {
		return Invoice{}, fmt.Errorf("supersede invoice: %w", err)
	}
	row := s.DB.QueryRow(ctx, `
		INSERT INTO invoices (id, invoice_id, order_id, amount, status, page_url, payload, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING `+invoiceColumns,
		inv.ID, inv.InvoiceID, inv.OrderID, inv.Amount, inv.Status, inv.PageURL, inv.Payload)
	return scanInvoice(row)
}

// GetActiveByOrder returns the current active invoice record for an order.
func (s Invoices) GetActiveByOrder(ctx context.Context, orderID uuid.UUID) (Invoice, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE order_id = $1 AND active`, orderID)
	return notFoundWrap(scanInvoice(row))
}

// GetByInvoiceID returns the record for a gateway invoice identifier.
func (s Invoices) GetByInvoiceID(ctx context.Context, invoiceID string) (Invoice, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_id = $1`, invoiceID)
	return notFoundWrap(scanInvoice(row))
}

// RecordPayload stores the raw last-seen gateway payload for audit before any
// transition decision is made.
func (s Invoices) RecordPayload(ctx context.Context, invoiceID string, payload []byte) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE invoices SET payload = $2, updated_at = now() WHERE invoice_id = $1`,
		invoiceID, payload)
	if err != nil {
		return fmt.Errorf("record invoice payload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkConfirmed transitions a created invoice to confirmed, but only when the
// observed amount equals the amount recorded at creation. Confirming an
// already confirmed invoice is a no-op. A mismatch leaves the record
// untouched and returns ErrAmountMismatch. The returned bool reports whether
// this call applied the transition, so callers can act exactly once.
func (s Invoices) MarkConfirmed(ctx context.Context, invoiceID string, observed money.Amount) (bool, error) {
	inv, err := s.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	if inv.Status == InvoiceStatusConfirmed {
		return false, nil
	}
	if inv.Amount != observed {
		return false, fmt.Errorf("%w: recorded %d observed %d", ErrAmountMismatch, inv.Amount, observed)
	}
	// The status guard makes concurrent confirms a single-winner race.
	tag, err := s.DB.Exec(ctx, `
		UPDATE invoices SET status = $2, updated_at = now()
		WHERE invoice_id = $1 AND status = $3`,
		invoiceID, InvoiceStatusConfirmed, InvoiceStatusCreated)
	if err != nil {
		return false, fmt.Errorf("confirm invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// lost the race to another terminal transition; re-read to decide
		current, err := s.GetByInvoiceID(ctx, invoiceID)
		if err != nil {
			return false, err
		}
		if current.Status == InvoiceStatusConfirmed {
			return false, nil
		}
		return false, fmt.Errorf("invoice %s already %s", invoiceID, current.Status)
	}
	return true, nil
}

// MarkTerminal moves a created invoice into failed or expired. Terminal
// states are absorbing: an invoice already terminal is left untouched.
func (s Invoices) MarkTerminal(ctx context.Context, invoiceID string, to InvoiceStatus) error {
	if !to.Terminal() {
		return fmt.Errorf("status %s is not terminal", to)
	}
	_, err := s.DB.Exec(ctx, `
		UPDATE invoices SET status = $2, updated_at = now()
		WHERE invoice_id = $1 AND status = $3`,
		invoiceID, to, InvoiceStatusCreated)
	if err != nil {
		return fmt.Errorf("transition invoice: %w", err)
	}
	return nil
}

// Flag marks an invoice for manual review.
func (s Invoices) Flag(ctx context.Context, invoiceID, reason string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE invoices SET flagged = TRUE, flag_reason = $2, updated_at = now()
		WHERE invoice_id = $1`, invoiceID, reason)
	if err != nil {
		return fmt.Errorf("flag invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFlagged returns invoices awaiting manual review, newest first.
func (s Invoices) ListFlagged(ctx context.Context, limit int32) ([]Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE flagged ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

// ListStaleCreated returns active invoices still in created state older than
// the cutoff, for the worker's status sweep.
func (s Invoices) ListStaleCreated(ctx context.Context, olderThan time.Time, limit int32) ([]Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE active AND status = $1 AND created_at < $2
		ORDER BY created_at LIMIT $3`,
		InvoiceStatusCreated, olderThan, limit)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceID, &inv.OrderID, &inv.Amount, &inv.Status, &inv.PageURL,
		&inv.Payload, &inv.Active, &inv.Flagged, &inv.FlagReason, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func notFoundWrap(inv Invoice, err error) (Invoice, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}
