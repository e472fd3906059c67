package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/common"
	"github.com/kvitka-ua/backend-kvitka/internal/obs"
)

const maxWebhookBody = 1 << 20

// Verifier checks the X-Sign header: base64 HMAC-SHA256 over the raw body,
// keyed with the webhook secret shared with the gateway.
type Verifier struct {
	Secret []byte
}

// Sign computes the signature for a payload.
func (v Verifier) Sign(raw []byte) string {
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write(raw)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the signature matches the payload. Comparison is
// constant time.
func (v Verifier) Verify(raw []byte, signature string) bool {
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write(raw)
	return hmac.Equal(mac.Sum(nil), got)
}

type webhookBody struct {
	InvoiceID     string `json:"invoiceId"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	FailureReason string `json:"failureReason"`
	ErrCode       string `json:"errCode"`
}

// WebhookHandler terminates gateway callbacks: verify, dedupe, reconcile.
type WebhookHandler struct {
	Reconciler *Reconciler
	Verifier   Verifier
	Redis      redis.UniversalClient
	ReplayTTL  time.Duration
	Logger     zerolog.Logger
}

// ServeHTTP responds 2xx for every structurally valid, verified payload once
// it has been recorded. Malformed or unverifiable requests and deliveries
// that fail midway get a non-2xx, and their identical retries are processed
// from scratch.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.count("read_error")
		common.JSONError(w, http.StatusBadRequest, "MALFORMED_WEBHOOK", "unreadable payload", nil)
		return
	}

	if !h.Verifier.Verify(raw, r.Header.Get("X-Sign")) {
		h.count("bad_signature")
		h.Logger.Warn().Str("remote", r.RemoteAddr).Msg("webhook signature rejected")
		common.JSONAppError(w, common.NewAppError("BAD_SIGNATURE", "signature verification failed",
			http.StatusUnauthorized, ErrBadSignature))
		return
	}

	replayKey := "webhook:seen:" + common.Sha256Hex(string(raw))
	if h.alreadySeen(r.Context(), replayKey) {
		h.count("replay")
		common.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		h.count("malformed")
		common.JSONError(w, http.StatusBadRequest, "MALFORMED_WEBHOOK", "invalid json payload", nil)
		return
	}
	reason := body.FailureReason
	if reason == "" {
		reason = body.ErrCode
	}

	outcome, err := h.Reconciler.Process(r.Context(), Callback{
		InvoiceID: body.InvoiceID,
		Status:    body.Status,
		Amount:    body.Amount,
		Reason:    reason,
		Raw:       raw,
	})
	switch {
	case errors.Is(err, ErrMalformedWebhook):
		h.count("malformed")
		common.JSONError(w, http.StatusBadRequest, "MALFORMED_WEBHOOK", "invoice identifier and status are required", nil)
		return
	case errors.Is(err, ErrUnknownInvoice):
		// retrying cannot make the invoice known; acknowledge and move on
		h.count(string(OutcomeUnknown))
		h.Logger.Warn().Str("invoice_id", body.InvoiceID).Str("status", body.Status).
			Msg("webhook for unknown invoice")
		h.markSeen(r.Context(), replayKey)
		common.JSON(w, http.StatusOK, map[string]string{"status": string(OutcomeUnknown)})
		return
	case err != nil:
		h.count("error")
		h.Logger.Error().Err(err).Str("invoice_id", body.InvoiceID).Msg("webhook reconciliation failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "reconciliation failed", nil)
		return
	}

	h.count(string(outcome))
	h.markSeen(r.Context(), replayKey)
	common.JSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}

// alreadySeen reports whether an identical payload was already handled to
// completion. Read-only: a delivery that ends in a non-2xx must leave no
// trace here, so the gateway's identical retry is processed again. The
// durable state machine stays the authority; redis only short-circuits
// verbatim retries.
func (h *WebhookHandler) alreadySeen(ctx context.Context, key string) bool {
	if h.Redis == nil {
		return false
	}
	n, err := h.Redis.Exists(ctx, key).Result()
	if err != nil {
		h.Logger.Warn().Err(err).Msg("webhook replay guard unavailable")
		return false
	}
	return n > 0
}

// markSeen records the payload as fully handled. Called only on paths that
// answer 2xx.
func (h *WebhookHandler) markSeen(ctx context.Context, key string) {
	if h.Redis == nil {
		return
	}
	ttl := h.ReplayTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := h.Redis.Set(ctx, key, 1, ttl).Err(); err != nil {
		h.Logger.Warn().Err(err).Msg("webhook replay guard unavailable")
	}
}

func (h *WebhookHandler) count(result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(result).Inc()
	}
}
