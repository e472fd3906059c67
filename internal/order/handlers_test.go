package order_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/order"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

type stubService struct {
	created []order.CreateInput
	view    order.View
	getErr  error
}

func (s *stubService) Create(_ context.Context, in order.CreateInput) (order.View, error) {
	s.created = append(s.created, in)
	return s.view, nil
}

func (s *stubService) Get(_ context.Context, _ uuid.UUID) (order.View, error) {
	if s.getErr != nil {
		return order.View{}, s.getErr
	}
	return s.view, nil
}

func newHandler(svc *stubService) *order.Handler {
	return &order.Handler{Service: svc, Validate: validator.New(), Logger: zerolog.Nop()}
}

const validOrderBody = `{
	"customerName": "Оксана",
	"customerPhone": "+380501112233",
	"deliveryMethod": "nova_poshta",
	"delivery": {"city": "Київ", "warehouse": "12"},
	"paymentMethod": "card",
	"items": [{"title": "Букет", "qty": 1, "unitPrice": "100.50"}]
}`

func TestCreateOrder(t *testing.T) {
	svc := &stubService{view: order.View{ID: uuid.NewString(), Status: "new", Total: "100.50"}}
	h := newHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(validOrderBody))
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if len(svc.created) != 1 {
		t.Fatalf("service called %d times", len(svc.created))
	}
	if svc.created[0].Items[0].UnitPrice.String() != "100.50" {
		t.Fatalf("unit price lost precision: %s", svc.created[0].Items[0].UnitPrice)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"no items", `{"customerName":"А","customerPhone":"1","deliveryMethod":"pickup","paymentMethod":"card","items":[]}`},
		{"bad payment method", strings.Replace(validOrderBody, `"card"`, `"crypto"`, 1)},
		{"broken json", `{"customerName":`},
	}
	for _, tc := range cases {
		svc := &stubService{}
		h := newHandler(svc)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(tc.body))
		rr := httptest.NewRecorder()
		h.Create(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tc.name, rr.Code)
		}
		if len(svc.created) != 0 {
			t.Fatalf("%s: service reached with invalid input", tc.name)
		}
	}
}

func TestGetOrder(t *testing.T) {
	id := uuid.New()
	svc := &stubService{view: order.View{ID: id.String(), Status: "paid"}}
	h := newHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+id.String(), nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", id.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), id.String()) {
		t.Fatalf("body missing order id: %s", rr.Body.String())
	}
}

func TestGetOrderNotFound(t *testing.T) {
	svc := &stubService{getErr: store.ErrNotFound}
	h := newHandler(svc)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+id, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestGetOrderInvalidID(t *testing.T) {
	h := newHandler(&stubService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/not-a-uuid", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	h.Get(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}
