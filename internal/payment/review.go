package payment

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/common"
	"github.com/kvitka-ua/backend-kvitka/internal/money"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

type flaggedLister interface {
	ListFlagged(ctx context.Context, limit int32) ([]store.Invoice, error)
}

// FlaggedInvoice is the manual-review view of an invoice.
type FlaggedInvoice struct {
	InvoiceID  string    `json:"invoiceId"`
	OrderID    string    `json:"orderId"`
	Amount     string    `json:"amount"`
	Status     string    `json:"status"`
	FlagReason string    `json:"flagReason"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ReviewHandler lists invoices flagged for manual review, newest first.
type ReviewHandler struct {
	Invoices flaggedLister
	Logger   zerolog.Logger
}

func (h *ReviewHandler) ListFlagged(w http.ResponseWriter, r *http.Request) {
	limit := int32(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = int32(n)
		}
	}
	invoices, err := h.Invoices.ListFlagged(r.Context(), limit)
	if err != nil {
		h.Logger.Error().Err(err).Msg("list flagged invoices")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	out := make([]FlaggedInvoice, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, FlaggedInvoice{
			InvoiceID:  inv.InvoiceID,
			OrderID:    inv.OrderID.String(),
			Amount:     money.Format(inv.Amount),
			Status:     string(inv.Status),
			FlagReason: inv.FlagReason,
			UpdatedAt:  inv.UpdatedAt,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"invoices": out})
}
