package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/common"
	"github.com/kvitka-ua/backend-kvitka/internal/money"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

type orderService interface {
	Create(ctx context.Context, in CreateInput) (View, error)
	Get(ctx context.Context, id uuid.UUID) (View, error)
}

// Handler exposes order intake and lookup.
type Handler struct {
	Service  orderService
	Validate *validator.Validate
	Logger   zerolog.Logger
}

// Create handles POST /orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<18))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid order input", validationDetails(err))
		return
	}
	view, err := h.Service.Create(r.Context(), in)
	if err != nil {
		if errors.Is(err, money.ErrInvalidAmount) {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return
		}
		h.Logger.Error().Err(err).Msg("create order")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	common.JSON(w, http.StatusCreated, view)
}

// Get handles GET /orders/{orderId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid order identifier", nil)
		return
	}
	view, err := h.Service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		h.Logger.Error().Err(err).Msg("get order")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	common.JSON(w, http.StatusOK, view)
}

func validationDetails(err error) any {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return nil
	}
	out := make(map[string]string, len(invalid))
	for _, fe := range invalid {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
