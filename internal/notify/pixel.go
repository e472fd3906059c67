package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Conversion is the hand-off payload for the marketing pixel API.
type Conversion struct {
	EventName string `json:"eventName"`
	OrderID   string `json:"orderId"`
	Value     string `json:"value"`
	Currency  string `json:"currency"`
	EventTime int64  `json:"eventTime"`
}

// PixelClient reports purchase conversions. Purely best-effort: callers log
// failures and move on.
type PixelClient struct {
	URL    string
	Token  string
	Client *http.Client
}

// NewPixelClient builds a pixel client with a bounded timeout.
func NewPixelClient(url, token string, timeout time.Duration) *PixelClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PixelClient{
		URL:   url,
		Token: token,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Track sends one conversion event.
func (c *PixelClient) Track(ctx context.Context, conv Conversion) error {
	if c.URL == "" {
		return nil
	}
	if conv.EventTime == 0 {
		conv.EventTime = time.Now().Unix()
	}
	body, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversion: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build conversion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send conversion: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("pixel api status %d", resp.StatusCode)
	}
	return nil
}
