package gateway

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks transient transport failures (timeouts, connection
// errors, gateway 5xx). Callers may retry with backoff; the payment outcome
// is unknown.
var ErrUnavailable = errors.New("gateway: unavailable")

// DeclinedError is a gateway-reported business failure (insufficient funds,
// limits, blocked card). Terminal for the attempt; surfaced to the customer.
type DeclinedError struct {
	Code    string
	Message string
}

func (e *DeclinedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway: declined (%s)", e.Code)
	}
	return fmt.Sprintf("gateway: declined (%s): %s", e.Code, e.Message)
}

// APIError captures any other non-2xx gateway response.
type APIError struct {
	StatusCode int
	RawBody    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: unexpected status %d: %s", e.StatusCode, truncate(e.RawBody, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
