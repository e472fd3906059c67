package payment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/payment"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

type stubFlaggedLister struct {
	invoices  []store.Invoice
	lastLimit int32
}

func (s *stubFlaggedLister) ListFlagged(_ context.Context, limit int32) ([]store.Invoice, error) {
	s.lastLimit = limit
	return s.invoices, nil
}

func TestListFlagged(t *testing.T) {
	lister := &stubFlaggedLister{invoices: []store.Invoice{
		{
			InvoiceID:  "inv-1",
			OrderID:    uuid.New(),
			Amount:     10050,
			Status:     store.InvoiceStatusFailed,
			FlagReason: "store: amount mismatch",
		},
	}}
	h := &payment.ReviewHandler{Invoices: lister, Logger: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/invoices/flagged", nil)
	rr := httptest.NewRecorder()
	h.ListFlagged(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if lister.lastLimit != 50 {
		t.Fatalf("default limit = %d, want 50", lister.lastLimit)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"invoiceId":"inv-1"`) || !strings.Contains(body, `"amount":"100.50"`) {
		t.Fatalf("body = %s", body)
	}
}

func TestListFlaggedClampsLimit(t *testing.T) {
	lister := &stubFlaggedLister{}
	h := &payment.ReviewHandler{Invoices: lister, Logger: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/invoices/flagged?limit=9000", nil)
	rr := httptest.NewRecorder()
	h.ListFlagged(rr, req)
	if lister.lastLimit != 50 {
		t.Fatalf("out-of-range limit not ignored: %d", lister.lastLimit)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/invoices/flagged?limit=10", nil)
	rr = httptest.NewRecorder()
	h.ListFlagged(rr, req)
	if lister.lastLimit != 10 {
		t.Fatalf("limit = %d, want 10", lister.lastLimit)
	}
}
