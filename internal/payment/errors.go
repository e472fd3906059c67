package payment

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedWebhook marks a callback payload missing its invoice
	// identifier or status. The gateway gets a non-2xx and retries.
	ErrMalformedWebhook = errors.New("payment: malformed webhook payload")
	// ErrUnknownInvoice marks a callback for an invoice this system never
	// created. Logged and acknowledged; retrying cannot make it known.
	ErrUnknownInvoice = errors.New("payment: unknown invoice")
	// ErrBadSignature marks a callback whose signature did not verify.
	ErrBadSignature = errors.New("payment: webhook signature mismatch")
)

// ValidationError reports bad client input on intent creation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid payment input"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "invalid payment input: " + strings.Join(parts, "; ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// UnsupportedActionError reports an unknown action discriminator.
type UnsupportedActionError struct {
	Action string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("unsupported payment action %q", e.Action)
}
