// Package worker runs background reconciliation jobs. The invoice sweep polls
// the gateway for invoices stuck in created state and applies the terminal
// status the gateway reports, so webhooks lost in transit still converge.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/gateway"
	"github.com/kvitka-ua/backend-kvitka/internal/lock"
	"github.com/kvitka-ua/backend-kvitka/internal/obs"
	"github.com/kvitka-ua/backend-kvitka/internal/payment"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

// TaskInvoiceSweep is the asynq task type for the periodic sweep.
const TaskInvoiceSweep = "invoice:sweep"

const sweepLockKey = "lock:invoice-sweep"

type staleLister interface {
	ListStaleCreated(ctx context.Context, olderThan time.Time, limit int32) ([]store.Invoice, error)
}

type gatewayStatus interface {
	InvoiceStatus(ctx context.Context, invoiceID string) (gateway.StatusResult, error)
}

// Sweeper reconciles stale created invoices against the gateway.
type Sweeper struct {
	Invoices   staleLister
	Gateway    gatewayStatus
	Reconciler *payment.Reconciler
	Locker     lock.Locker
	Logger     zerolog.Logger
	MaxAge     time.Duration
	BatchSize  int32
	LockTTL    time.Duration
}

// HandleSweep is the asynq handler. The redis lock keeps concurrent workers
// from sweeping the same batch; losing the lock is not an error.
func (s *Sweeper) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	err := s.Locker.TryWithLock(ctx, sweepLockKey, s.lockTTL(), s.sweep)
	if errors.Is(err, lock.ErrNotAcquired) {
		s.Logger.Debug().Msg("invoice sweep already running elsewhere")
		return nil
	}
	return err
}

func (s *Sweeper) sweep(ctx context.Context) error {
	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = 15 * time.Minute
	}
	batch := s.BatchSize
	if batch <= 0 {
		batch = 50
	}
	cutoff := time.Now().Add(-maxAge)
	invoices, err := s.Invoices.ListStaleCreated(ctx, cutoff, batch)
	if err != nil {
		s.count("list_error")
		return err
	}
	for _, inv := range invoices {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.reconcileOne(ctx, inv)
	}
	if len(invoices) > 0 {
		s.Logger.Info().Int("count", len(invoices)).Msg("invoice sweep pass complete")
	}
	return nil
}

func (s *Sweeper) reconcileOne(ctx context.Context, inv store.Invoice) {
	status, err := s.Gateway.InvoiceStatus(ctx, inv.InvoiceID)
	if err != nil {
		// transient gateway trouble; the next pass picks the invoice up again
		s.count("gateway_error")
		s.Logger.Warn().Err(err).Str("invoice_id", inv.InvoiceID).Msg("sweep status lookup failed")
		return
	}
	outcome, err := s.Reconciler.Process(ctx, payment.Callback{
		InvoiceID: inv.InvoiceID,
		Status:    status.Status,
		Amount:    status.Amount,
		Reason:    status.Reason,
	})
	if err != nil {
		if errors.Is(err, payment.ErrUnknownInvoice) {
			// listed moments ago but gone now; nothing left to reconcile
			s.count(string(payment.OutcomeUnknown))
			s.Logger.Warn().Str("invoice_id", inv.InvoiceID).Msg("stale invoice vanished before sweep")
			return
		}
		s.count("error")
		s.Logger.Error().Err(err).Str("invoice_id", inv.InvoiceID).Msg("sweep reconciliation failed")
		return
	}
	s.count(string(outcome))
	if outcome != payment.OutcomePending {
		s.Logger.Info().
			Str("invoice_id", inv.InvoiceID).
			Str("outcome", string(outcome)).
			Msg("stale invoice reconciled")
	}
}

func (s *Sweeper) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 2 * time.Minute
	}
	return s.LockTTL
}

func (s *Sweeper) count(result string) {
	if obs.InvoiceSweepTotal != nil {
		obs.InvoiceSweepTotal.WithLabelValues(result).Inc()
	}
}
