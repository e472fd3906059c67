package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/common"
	"github.com/kvitka-ua/backend-kvitka/internal/gateway"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

// Handler exposes the payment intent and status endpoints.
type Handler struct {
	Service *Service
	Logger  zerolog.Logger
}

// CreateIntent handles POST /payments/{action}.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")

	var in IntentInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid json body", nil)
		return
	}

	result, err := h.Service.CreateIntent(r.Context(), action, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, result)
}

// Status handles GET /payments/{orderId}/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid order identifier", nil)
		return
	}
	result, err := h.Service.Status(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, result)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	app := h.classify(err)
	if app.HTTPStatus >= http.StatusInternalServerError {
		h.Logger.Error().Err(err).Str("code", app.Code).Msg("payment request failed")
	}
	common.JSONAppError(w, app)
}

// classify maps the payment and gateway error taxonomy onto the shared
// AppError envelope.
func (h *Handler) classify(err error) *common.AppError {
	var (
		validation  *ValidationError
		unsupported *UnsupportedActionError
		declined    *gateway.DeclinedError
		apiErr      *gateway.APIError
	)
	switch {
	case errors.As(err, &validation):
		app := common.NewAppError("VALIDATION", "invalid payment input", http.StatusBadRequest, err)
		app.Details = validation.Fields
		return app
	case errors.As(err, &unsupported):
		return common.NewAppError("UNSUPPORTED_ACTION", unsupported.Error(), http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		return common.NewAppError("NOT_FOUND", "order or invoice not found", http.StatusNotFound, err)
	case errors.As(err, &declined):
		app := common.NewAppError("GATEWAY_DECLINED", declined.Message, http.StatusUnprocessableEntity, err)
		app.Details = map[string]string{"code": declined.Code}
		return app
	case errors.Is(err, gateway.ErrUnavailable):
		return common.NewAppError("GATEWAY_UNAVAILABLE", "payment gateway is unavailable, try again later", http.StatusBadGateway, err)
	case errors.As(err, &apiErr):
		return common.NewAppError("GATEWAY_ERROR", "unexpected gateway response", http.StatusBadGateway, err)
	default:
		return common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
}
