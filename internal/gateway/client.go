// Package gateway wraps the payment provider's merchant HTTP API: invoice
// creation (single charge or installment) and status lookup. The client owns
// amount formatting and authentication; it never logs the API token.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kvitka-ua/backend-kvitka/internal/money"
	"github.com/kvitka-ua/backend-kvitka/internal/obs"
	"github.com/kvitka-ua/backend-kvitka/internal/resilience"
)

// CreateInvoiceRequest carries everything required to open an invoice.
// PartsCount > 0 selects the installment flow.
type CreateInvoiceRequest struct {
	OrderID     string
	Amount      money.Amount
	Currency    string
	RedirectURL string
	WebhookURL  string
	Destination string
	ValiditySec int64
	PartsCount  int
}

// Invoice is the provider's view of a freshly created invoice.
type Invoice struct {
	InvoiceID string
	PageURL   string
	Amount    money.Amount
}

// StatusResult is the provider's view of an existing invoice.
type StatusResult struct {
	InvoiceID string
	Status    string
	Amount    money.Amount
	Reason    string
}

// Client talks to the merchant API. All calls attach the X-Token header and
// run under a bounded timeout with retry and circuit breaking.
type Client struct {
	BaseURL string
	Token   string
	HTTP    resilience.HTTPClient
	Logger  zerolog.Logger
}

// NewClient builds a gateway client with the provided resilience settings.
func NewClient(baseURL, token string, timeout time.Duration, attempts int, backoff time.Duration, jitter float64, logger zerolog.Logger) *Client {
	breaker := resilience.NewBreaker(10, 0.5, 30*time.Second).
		WithTarget("payment-gateway").
		WithLogger(logger)
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     breaker,
			BaseBackoff: backoff,
			MaxAttempts: attempts,
			Jitter:      jitter,
			Timeout:     timeout,
		},
		Logger: logger,
	}
}

type merchantPaymInfo struct {
	Reference   string `json:"reference"`
	Destination string `json:"destination,omitempty"`
}

type createInvoiceBody struct {
	Amount           int64            `json:"amount"`
	Ccy              int              `json:"ccy"`
	MerchantPaymInfo merchantPaymInfo `json:"merchantPaymInfo"`
	RedirectURL      string           `json:"redirectUrl,omitempty"`
	WebHookURL       string           `json:"webHookUrl,omitempty"`
	Validity         int64            `json:"validity,omitempty"`
	PaymentType      string           `json:"paymentType"`
	PartsCount       int              `json:"partsCount,omitempty"`
}

type createInvoiceResponse struct {
	InvoiceID string `json:"invoiceId"`
	PageURL   string `json:"pageUrl"`
}

type statusResponse struct {
	InvoiceID     string      `json:"invoiceId"`
	Status        string      `json:"status"`
	Amount        int64       `json:"amount"`
	FailureReason string      `json:"failureReason"`
	ErrCode       string      `json:"errCode"`
	Ccy           json.Number `json:"ccy"`
}

type gatewayErrorBody struct {
	ErrCode string `json:"errCode"`
	ErrText string `json:"errText"`
}

// CreateInvoice opens a new invoice. A PartsCount in the request switches
// the provider to the installment product.
func (c *Client) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (Invoice, error) {
	start := time.Now()
	body := createInvoiceBody{
		Amount: req.Amount,
		Ccy:    numericCurrency(req.Currency),
		MerchantPaymInfo: merchantPaymInfo{
			Reference:   req.OrderID,
			Destination: req.Destination,
		},
		RedirectURL: req.RedirectURL,
		WebHookURL:  req.WebhookURL,
		Validity:    req.ValiditySec,
		PaymentType: "debit",
	}
	path := "/api/merchant/invoice/create"
	if req.PartsCount > 0 {
		body.PartsCount = req.PartsCount
		path = "/api/merchant/invoice/create-part"
	}
	var resp createInvoiceResponse
	err := c.call(ctx, http.MethodPost, path, body, &resp)
	observeCall("create_invoice", start, err)
	if err != nil {
		return Invoice{}, err
	}
	if strings.TrimSpace(resp.InvoiceID) == "" {
		return Invoice{}, &APIError{StatusCode: http.StatusOK, RawBody: "missing invoiceId"}
	}
	c.Logger.Info().
		Str("order_id", req.OrderID).
		Str("invoice_id", resp.InvoiceID).
		Str("amount", money.Format(req.Amount)).
		Int("parts", req.PartsCount).
		Msg("gateway invoice created")
	return Invoice{InvoiceID: resp.InvoiceID, PageURL: resp.PageURL, Amount: req.Amount}, nil
}

// InvoiceStatus fetches the current provider-side status of an invoice.
func (c *Client) InvoiceStatus(ctx context.Context, invoiceID string) (StatusResult, error) {
	start := time.Now()
	if strings.TrimSpace(invoiceID) == "" {
		return StatusResult{}, errors.New("gateway: invoice id is required")
	}
	var resp statusResponse
	path := "/api/merchant/invoice/status?invoiceId=" + url.QueryEscape(invoiceID)
	err := c.call(ctx, http.MethodGet, path, nil, &resp)
	observeCall("invoice_status", start, err)
	if err != nil {
		return StatusResult{}, err
	}
	reason := resp.FailureReason
	if reason == "" {
		reason = resp.ErrCode
	}
	return StatusResult{
		InvoiceID: resp.InvoiceID,
		Status:    resp.Status,
		Amount:    resp.Amount,
		Reason:    reason,
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("X-Token", c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		// transport failure or exhausted retries: outcome unknown
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return &APIError{StatusCode: resp.StatusCode, RawBody: string(raw)}
		}
		return nil
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var gwErr gatewayErrorBody
	if json.Unmarshal(raw, &gwErr) == nil && isDeclineCode(gwErr.ErrCode) {
		return &DeclinedError{Code: gwErr.ErrCode, Message: gwErr.ErrText}
	}
	return &APIError{StatusCode: resp.StatusCode, RawBody: string(raw)}
}

func isDeclineCode(code string) bool {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "DECLINED", "INSUFFICIENT_FUNDS", "LIMIT_EXCEEDED", "CARD_BLOCKED", "FORBIDDEN_BY_BANK":
		return true
	default:
		return false
	}
}

func numericCurrency(code string) int {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "", "UAH":
		return 980
	case "USD":
		return 840
	case "EUR":
		return 978
	default:
		return 980
	}
}

func observeCall(operation string, start time.Time, err error) {
	if obs.GatewayCallDuration == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	obs.GatewayCallDuration.WithLabelValues(operation, result).Observe(obs.DurationMillis(time.Since(start)))
}
