package payment

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/kvitka-ua/backend-kvitka/internal/money"
)

// Actions accepted by the intent endpoint.
const (
	ActionCreate     = "create"
	ActionCreatePart = "create-part"
)

// Mode distinguishes a single charge from an installment invoice.
type Mode string

const (
	ModeSingle      Mode = "single"
	ModeInstallment Mode = "installment"
)

// IntentInput is the raw client request. Amount arrives as a JSON number or
// decimal string and is converted exactly to minor units.
type IntentInput struct {
	OrderID     string      `json:"orderId"`
	Amount      json.Number `json:"amount"`
	RedirectURL string      `json:"redirectUrl"`
	PartsCount  int         `json:"partsCount"`
	Description string      `json:"description"`
}

// Intent is a validated, immutable gateway request. Building it performs no
// network calls.
type Intent struct {
	OrderID     string
	Amount      money.Amount
	Mode        Mode
	PartsCount  int
	RedirectURL string
	Description string
}

type createInput struct {
	OrderID     string `validate:"required"`
	Amount      int64  `validate:"required,gt=0"`
	RedirectURL string `validate:"required,url"`
}

type createPartInput struct {
	OrderID    string `validate:"required"`
	Amount     int64  `validate:"required,gt=0"`
	PartsCount int    `validate:"required,gte=2,lte=12"`
}

// Builder validates intent inputs per action.
type Builder struct {
	Validate *validator.Validate
}

// NewBuilder constructs a Builder with a fresh validator instance.
func NewBuilder() *Builder {
	return &Builder{Validate: validator.New()}
}

// Build produces a validated Intent or fails with ValidationError or
// UnsupportedActionError. It is a pure transform.
func (b *Builder) Build(action string, in IntentInput) (Intent, error) {
	amount, err := parseAmount(in.Amount)
	if err != nil {
		return Intent{}, newValidationError("amount", err.Error())
	}
	switch action {
	case ActionCreate:
		if err := b.Validate.Struct(createInput{
			OrderID:     in.OrderID,
			Amount:      amount,
			RedirectURL: in.RedirectURL,
		}); err != nil {
			return Intent{}, asValidationError(err)
		}
		return Intent{
			OrderID:     in.OrderID,
			Amount:      amount,
			Mode:        ModeSingle,
			RedirectURL: in.RedirectURL,
			Description: in.Description,
		}, nil
	case ActionCreatePart:
		if err := b.Validate.Struct(createPartInput{
			OrderID:    in.OrderID,
			Amount:     amount,
			PartsCount: in.PartsCount,
		}); err != nil {
			return Intent{}, asValidationError(err)
		}
		return Intent{
			OrderID:     in.OrderID,
			Amount:      amount,
			Mode:        ModeInstallment,
			PartsCount:  in.PartsCount,
			RedirectURL: in.RedirectURL,
			Description: in.Description,
		}, nil
	default:
		return Intent{}, &UnsupportedActionError{Action: action}
	}
}

func parseAmount(n json.Number) (money.Amount, error) {
	if n == "" {
		return 0, errors.New("is required")
	}
	return money.Parse(n.String())
}

func asValidationError(err error) error {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return newValidationError("input", err.Error())
	}
	out := &ValidationError{Fields: make(map[string]string, len(invalid))}
	for _, fe := range invalid {
		out.Fields[fe.Field()] = fe.Tag()
	}
	return out
}
