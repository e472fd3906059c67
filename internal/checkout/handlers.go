package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/common"
	"github.com/kvitka-ua/backend-kvitka/internal/money"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

type orderStore interface {
	Get(ctx context.Context, id uuid.UUID) (store.Order, error)
}

// Handler serves the signing endpoint and the redirect page.
type Handler struct {
	Signer      Signer
	Orders      orderStore
	Validate    *validator.Validate
	Logger      zerolog.Logger
	CheckoutURL string
	Currency    string
	ResultURL   string
}

type signRequest struct {
	OrderID     string      `json:"orderId" validate:"required,uuid"`
	Amount      json.Number `json:"amount" validate:"required"`
	Currency    string      `json:"currency"`
	Description string      `json:"description" validate:"max=280"`
}

// Sign handles POST /checkout/sign. The amount is cross-checked against the
// order total so clients cannot request a signature over an arbitrary sum.
func (h *Handler) Sign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "orderId and amount are required", nil)
		return
	}
	amount, err := money.Parse(req.Amount.String())
	if err != nil || amount <= 0 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "amount must be a positive decimal with at most two fraction digits", nil)
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid order identifier", nil)
		return
	}
	order, err := h.Orders.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONAppError(w, common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err))
			return
		}
		h.Logger.Error().Err(err).Msg("load order for signing")
		common.JSONAppError(w, common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err))
		return
	}
	if amount != order.Total {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "amount does not match the order total", nil)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = h.Currency
	}
	signed, err := h.Signer.Sign(PayloadFor(order.ID.String(), amount, currency, req.Description, h.ResultURL))
	if err != nil {
		h.Logger.Error().Err(err).Msg("sign checkout payload")
		common.JSONAppError(w, common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err))
		return
	}
	common.JSON(w, http.StatusOK, signed)
}

var redirectPage = template.Must(template.New("redirect").Parse(`<!doctype html>
<html lang="uk">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Перенаправлення на оплату</title>
<style>
body{font-family:sans-serif;display:flex;flex-direction:column;align-items:center;margin-top:20vh;gap:1rem}
button{padding:.6rem 2rem;font-size:1rem;cursor:pointer}
</style>
</head>
<body>
<p>Перенаправляємо на сторінку оплати…</p>
<form id="checkout" method="POST" action="{{.Action}}" accept-charset="utf-8">
<input type="hidden" name="data" value="{{.Data}}">
<input type="hidden" name="signature" value="{{.Signature}}">
<button type="submit">Перейти до оплати</button>
</form>
<script>
(function () {
  var form = document.getElementById("checkout");
  var submitted = false;
  if (!form.data.value || !form.signature.value) { return; }
  if (submitted) { return; }
  submitted = true;
  form.submit();
})();
</script>
</body>
</html>
`))

type redirectView struct {
	Action    string
	Data      string
	Signature string
}

// Redirect handles GET /checkout/{orderId}/redirect: a pre-rendered form that
// auto-submits once to the hosted checkout. If scripting fails the manual
// submit button remains usable; the page never retries on its own.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		http.Error(w, "invalid order identifier", http.StatusBadRequest)
		return
	}
	order, err := h.Orders.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		h.Logger.Error().Err(err).Msg("load order for redirect")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	description := fmt.Sprintf("Оплата замовлення %s", order.ID)
	signed, err := h.Signer.Sign(PayloadFor(order.ID.String(), order.Total, h.Currency, description, h.ResultURL))
	if err != nil {
		h.Logger.Error().Err(err).Msg("sign redirect payload")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := redirectPage.Execute(w, redirectView{
		Action:    h.CheckoutURL,
		Data:      signed.Data,
		Signature: signed.Signature,
	}); err != nil {
		h.Logger.Error().Err(err).Msg("render redirect page")
	}
}
