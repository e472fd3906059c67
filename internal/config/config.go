package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	PublicBaseURL      string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string
	CurrencyCode       string

	GatewayBaseURL       string
	GatewayAPIToken      string
	GatewayWebhookSecret string
	GatewayTimeout       time.Duration
	GatewayRetryAttempts int
	GatewayRetryBase     time.Duration
	GatewayRetryJitter   float64

	CheckoutURL        string
	CheckoutPublicKey  string
	CheckoutPrivateKey string

	TelegramBotToken string
	TelegramChatID   int64
	PixelEndpoint    string
	PixelToken       string

	AdminEmail        string
	AdminPasswordHash string
	AuthSecret        string
	AuthTokenTTL      time.Duration

	IntentTTL        time.Duration
	WebhookReplayTTL time.Duration
	IdempotencyTTL   time.Duration

	RateLimitIntent string
	RateLimitSign   string

	InvoiceSweepInterval time.Duration
	InvoiceSweepBatch    int

	DBMaxOpenConns int
	DBMinIdleConns int
}

// Load reads configuration from environment variables and optional .env files.
// Missing secrets are a startup error, never a per-request fallback.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		PublicBaseURL:      strings.TrimRight(strings.TrimSpace(k.String("PUBLIC_BASE_URL")), "/"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       valueOrDefault(k.String("CURRENCY_CODE"), "UAH"),

		GatewayBaseURL:       valueOrDefault(strings.TrimRight(k.String("GATEWAY_BASE_URL"), "/"), "https://api.monobank.ua"),
		GatewayAPIToken:      k.String("GATEWAY_API_TOKEN"),
		GatewayWebhookSecret: k.String("GATEWAY_WEBHOOK_SECRET"),
		GatewayTimeout:       parseDuration(k.String("GATEWAY_TIMEOUT"), "5s"),
		GatewayRetryAttempts: atoiDefault(k.String("GATEWAY_RETRY_ATTEMPTS"), 3),
		GatewayRetryBase:     parseDuration(k.String("GATEWAY_RETRY_BASE"), "200ms"),
		GatewayRetryJitter:   parseFloat(k.String("GATEWAY_RETRY_JITTER"), 0.2),

		CheckoutURL:        valueOrDefault(k.String("CHECKOUT_URL"), "https://www.liqpay.ua/api/3/checkout"),
		CheckoutPublicKey:  k.String("CHECKOUT_PUBLIC_KEY"),
		CheckoutPrivateKey: k.String("CHECKOUT_PRIVATE_KEY"),

		TelegramBotToken: k.String("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   parseInt64(k.String("TELEGRAM_CHAT_ID"), 0),
		PixelEndpoint:    strings.TrimSpace(k.String("PIXEL_ENDPOINT")),
		PixelToken:       k.String("PIXEL_TOKEN"),

		AdminEmail:        strings.TrimSpace(k.String("ADMIN_EMAIL")),
		AdminPasswordHash: k.String("ADMIN_PASSWORD_HASH"),
		AuthSecret:        k.String("AUTH_SECRET"),
		AuthTokenTTL:      parseDuration(k.String("AUTH_TOKEN_TTL"), "12h"),

		IntentTTL:        parseDuration(k.String("PAYMENT_INTENT_TTL"), "15m"),
		WebhookReplayTTL: parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),

		RateLimitIntent: valueOrDefault(k.String("RATE_LIMIT_INTENT"), "30-M"),
		RateLimitSign:   valueOrDefault(k.String("RATE_LIMIT_SIGN"), "60-M"),

		InvoiceSweepInterval: parseDuration(k.String("INVOICE_SWEEP_INTERVAL"), "5m"),
		InvoiceSweepBatch:    atoiDefault(k.String("INVOICE_SWEEP_BATCH"), 50),

		DBMaxOpenConns: atoiDefault(k.String("DB_MAX_OPEN_CONNS"), 0),
		DBMinIdleConns: atoiDefault(k.String("DB_MIN_IDLE_CONNS"), 0),
	}

	required := []struct {
		name  string
		value string
	}{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"REDIS_URL", cfg.RedisURL},
		{"GATEWAY_API_TOKEN", cfg.GatewayAPIToken},
		{"GATEWAY_WEBHOOK_SECRET", cfg.GatewayWebhookSecret},
		{"CHECKOUT_PUBLIC_KEY", cfg.CheckoutPublicKey},
		{"CHECKOUT_PRIVATE_KEY", cfg.CheckoutPrivateKey},
		{"TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken},
		{"AUTH_SECRET", cfg.AuthSecret},
	}
	for _, req := range required {
		if strings.TrimSpace(req.value) == "" {
			return nil, errors.New(req.name + " is required")
		}
	}
	if cfg.TelegramChatID == 0 {
		return nil, errors.New("TELEGRAM_CHAT_ID is required")
	}
	if cfg.AdminEmail != "" && strings.TrimSpace(cfg.AdminPasswordHash) == "" {
		return nil, errors.New("ADMIN_PASSWORD_HASH is required when ADMIN_EMAIL is set")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func atoiDefault(value string, def int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return def
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return def
	}
	return parsed
}

func parseInt64(value string, def int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return def
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseFloat(value string, def float64) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return def
	}
	return parsed
}
