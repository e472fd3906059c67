package payment_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/gateway"
	"github.com/kvitka-ua/backend-kvitka/internal/payment"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

func postIntent(h *payment.Handler, action, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/"+action, strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("action", action)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	h.CreateIntent(rr, req)
	return rr
}

func TestCreateIntentEndpoint(t *testing.T) {
	orderID := uuid.New()
	gw := &stubGateway{resp: gateway.Invoice{InvoiceID: "inv-1", PageURL: "https://pay.example/inv-1"}}
	orders := &stubOrders{order: store.Order{ID: orderID, Status: store.OrderStatusNew, Total: 10050}}
	h := &payment.Handler{Service: newService(gw, orders, &stubInvoices{}), Logger: zerolog.Nop()}

	body := `{"orderId":"` + orderID.String() + `","amount":"100.50","redirectUrl":"https://x/pay"}`
	rr := postIntent(h, payment.ActionCreate, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"invoiceId":"inv-1"`) || !strings.Contains(rr.Body.String(), `"amount":"100.50"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestCreateIntentEndpointStatusMapping(t *testing.T) {
	orderID := uuid.New()
	validBody := `{"orderId":"` + orderID.String() + `","amount":"100.50","redirectUrl":"https://x/pay"}`

	cases := []struct {
		name     string
		action   string
		body     string
		gwErr    error
		want     int
		wantCode string
	}{
		{"unsupported action", "refund", validBody, nil, http.StatusBadRequest, "UNSUPPORTED_ACTION"},
		{"validation failure", payment.ActionCreate, `{"orderId":"` + orderID.String() + `","amount":"100.50"}`, nil, http.StatusBadRequest, "VALIDATION"},
		{"unknown order", payment.ActionCreate, `{"orderId":"` + uuid.NewString() + `","amount":"100.50","redirectUrl":"https://x/pay"}`, nil, http.StatusNotFound, "NOT_FOUND"},
		{"gateway declined", payment.ActionCreate, validBody, &gateway.DeclinedError{Code: "DECLINED"}, http.StatusUnprocessableEntity, "GATEWAY_DECLINED"},
		{"gateway unavailable", payment.ActionCreate, validBody, gateway.ErrUnavailable, http.StatusBadGateway, "GATEWAY_UNAVAILABLE"},
		{"unexpected gateway response", payment.ActionCreate, validBody, &gateway.APIError{StatusCode: 400}, http.StatusBadGateway, "GATEWAY_ERROR"},
	}
	for _, tc := range cases {
		gw := &stubGateway{resp: gateway.Invoice{InvoiceID: "inv-1"}, err: tc.gwErr}
		orders := &stubOrders{order: store.Order{ID: orderID, Status: store.OrderStatusNew, Total: 10050}}
		h := &payment.Handler{Service: newService(gw, orders, &stubInvoices{}), Logger: zerolog.Nop()}

		rr := postIntent(h, tc.action, tc.body)
		if rr.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d (body %s)", tc.name, rr.Code, tc.want, rr.Body.String())
		}
		if !strings.Contains(rr.Body.String(), `"code":"`+tc.wantCode+`"`) {
			t.Fatalf("%s: body = %s, want error code %s", tc.name, rr.Body.String(), tc.wantCode)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	orderID := uuid.New()
	invoices := &stubInvoices{active: store.Invoice{
		InvoiceID: "inv-1",
		OrderID:   orderID,
		Amount:    10050,
		Status:    store.InvoiceStatusConfirmed,
	}}
	h := &payment.Handler{Service: newService(&stubGateway{}, &stubOrders{}, invoices), Logger: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+orderID.String()+"/status", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	h.Status(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"status":"confirmed"`) {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestStatusEndpointNoActiveInvoice(t *testing.T) {
	h := &payment.Handler{Service: newService(&stubGateway{}, &stubOrders{}, &stubInvoices{}), Logger: zerolog.Nop()}

	orderID := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+orderID+"/status", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	h.Status(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
