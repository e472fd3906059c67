package payment_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/payment"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

func newWebhookHandler(t *testing.T, ledger *fakeLedger, notifier *stubNotifier) (*payment.WebhookHandler, payment.Verifier) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	verifier := payment.Verifier{Secret: []byte("webhook-secret")}
	return &payment.WebhookHandler{
		Reconciler: newReconciler(ledger, notifier),
		Verifier:   verifier,
		Redis:      rdb,
		Logger:     zerolog.Nop(),
	}, verifier
}

func postWebhook(h *payment.WebhookHandler, body []byte, sign string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway", bytes.NewReader(body))
	if sign != "" {
		req.Header.Set("X-Sign", sign)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	ledger := newFakeLedger()
	h, _ := newWebhookHandler(t, ledger, &stubNotifier{})

	body := []byte(`{"invoiceId":"inv-1","status":"success","amount":10050}`)
	if rr := postWebhook(h, body, ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing signature: status = %d, want 401", rr.Code)
	}
	if rr := postWebhook(h, body, "bm90LWEtc2lnbmF0dXJl"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong signature: status = %d, want 401", rr.Code)
	}
	if len(ledger.payloads) != 0 {
		t.Fatalf("unverified payload was recorded")
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	h, verifier := newWebhookHandler(t, newFakeLedger(), &stubNotifier{})

	body := []byte(`{"invoiceId":`)
	rr := postWebhook(h, body, verifier.Sign(body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	body = []byte(`{"status":"success","amount":10050}`)
	rr = postWebhook(h, body, verifier.Sign(body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing invoiceId: status = %d, want 400", rr.Code)
	}
	// a refused delivery leaves no replay mark, so its retry is refused too
	rr = postWebhook(h, body, verifier.Sign(body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("retried malformed payload: status = %d, want 400", rr.Code)
	}
}

func TestWebhookConfirmsAndAbsorbsRetry(t *testing.T) {
	orderID := uuid.New()
	ledger := newFakeLedger()
	ledger.add(
		store.Invoice{InvoiceID: "inv-1", OrderID: orderID, Amount: 10050, Status: store.InvoiceStatusCreated},
		store.Order{ID: orderID, Status: store.OrderStatusAwaitingPayment, Total: 10050},
	)
	notifier := &stubNotifier{}
	h, verifier := newWebhookHandler(t, ledger, notifier)

	body := []byte(`{"invoiceId":"inv-1","status":"success","amount":10050}`)
	sign := verifier.Sign(body)

	rr := postWebhook(h, body, sign)
	if rr.Code != http.StatusOK {
		t.Fatalf("first delivery: status = %d, body %s", rr.Code, rr.Body.String())
	}
	if ledger.orders[orderID].Status != store.OrderStatusPaid {
		t.Fatalf("order status = %s, want paid", ledger.orders[orderID].Status)
	}

	rr = postWebhook(h, body, sign)
	if rr.Code != http.StatusOK {
		t.Fatalf("retry delivery: status = %d, want 200", rr.Code)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("notifier invoked %d times, want 1", len(notifier.events))
	}
	if len(ledger.payloads["inv-1"]) != 1 {
		t.Fatalf("payload recorded %d times, want 1", len(ledger.payloads["inv-1"]))
	}
}

func TestWebhookRetryAfterFailureIsReprocessed(t *testing.T) {
	orderID := uuid.New()
	ledger := newFakeLedger()
	ledger.add(
		store.Invoice{InvoiceID: "inv-1", OrderID: orderID, Amount: 10050, Status: store.InvoiceStatusCreated},
		store.Order{ID: orderID, Status: store.OrderStatusAwaitingPayment, Total: 10050},
	)
	ledger.lookupErr = errors.New("connection reset by peer")
	notifier := &stubNotifier{}
	h, verifier := newWebhookHandler(t, ledger, notifier)

	body := []byte(`{"invoiceId":"inv-1","status":"success","amount":10050}`)
	sign := verifier.Sign(body)

	rr := postWebhook(h, body, sign)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("first delivery: status = %d, want 500", rr.Code)
	}
	if ledger.orders[orderID].Status != store.OrderStatusAwaitingPayment {
		t.Fatalf("order mutated by a failed delivery")
	}

	rr = postWebhook(h, body, sign)
	if rr.Code != http.StatusOK {
		t.Fatalf("retry delivery: status = %d, body %s", rr.Code, rr.Body.String())
	}
	if ledger.lookups != 2 {
		t.Fatalf("ledger lookups = %d, want 2: identical retry must be reprocessed", ledger.lookups)
	}
	if ledger.orders[orderID].Status != store.OrderStatusPaid {
		t.Fatalf("order status = %s, want paid", ledger.orders[orderID].Status)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("notifier invoked %d times, want 1", len(notifier.events))
	}
}

func TestWebhookUnknownInvoiceAcknowledged(t *testing.T) {
	h, verifier := newWebhookHandler(t, newFakeLedger(), &stubNotifier{})

	body := []byte(`{"invoiceId":"ghost","status":"success","amount":100}`)
	rr := postWebhook(h, body, verifier.Sign(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestVerifierRoundTrip(t *testing.T) {
	v := payment.Verifier{Secret: []byte("s3cret")}
	raw := []byte(`{"invoiceId":"inv-1"}`)
	if !v.Verify(raw, v.Sign(raw)) {
		t.Fatalf("own signature rejected")
	}
	if v.Verify([]byte(`{"invoiceId":"inv-2"}`), v.Sign(raw)) {
		t.Fatalf("signature accepted for different payload")
	}
	other := payment.Verifier{Secret: []byte("other")}
	if other.Verify(raw, v.Sign(raw)) {
		t.Fatalf("signature accepted under different secret")
	}
}
