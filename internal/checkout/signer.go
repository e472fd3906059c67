// Package checkout issues signed hosted-checkout payloads and serves the
// one-shot redirect page that posts them to the gateway.
package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/kvitka-ua/backend-kvitka/internal/money"
)

// Payload is the hosted-checkout request that gets encoded and signed.
type Payload struct {
	Version     int    `json:"version"`
	PublicKey   string `json:"public_key"`
	Action      string `json:"action"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	OrderID     string `json:"order_id"`
	ResultURL   string `json:"result_url,omitempty"`
}

// Signed carries the encoded payload and its signature, both safe to embed
// in an HTML form.
type Signed struct {
	Data      string `json:"data"`
	Signature string `json:"signature"`
}

// Signer produces {data, signature} pairs. The private key never leaves the
// server; clients only ever see the public key inside the encoded payload.
type Signer struct {
	PublicKey  string
	PrivateKey string
}

// Sign encodes the payload as base64 JSON and signs it with HMAC-SHA256.
// Signing is deterministic: the same payload always yields the same pair.
func (s Signer) Sign(p Payload) (Signed, error) {
	if p.Version == 0 {
		p.Version = 3
	}
	if p.Action == "" {
		p.Action = "pay"
	}
	p.PublicKey = s.PublicKey
	raw, err := json.Marshal(p)
	if err != nil {
		return Signed{}, fmt.Errorf("encode checkout payload: %w", err)
	}
	data := base64.StdEncoding.EncodeToString(raw)
	mac := hmac.New(sha256.New, []byte(s.PrivateKey))
	mac.Write([]byte(data))
	return Signed{
		Data:      data,
		Signature: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}, nil
}

// PayloadFor builds the standard payment payload for an order.
func PayloadFor(orderID string, amount money.Amount, currency, description, resultURL string) Payload {
	return Payload{
		Amount:      money.Format(amount),
		Currency:    currency,
		Description: description,
		OrderID:     orderID,
		ResultURL:   resultURL,
	}
}
