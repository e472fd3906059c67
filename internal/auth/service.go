// Package auth guards the manual-review endpoints with a single configured
// admin identity: argon2id credential check, short-lived HS256 JWT sessions.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const defaultTokenTTL = 30 * time.Minute

// ErrInvalidCredentials is returned for a wrong email or password.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Service issues and validates admin access tokens.
type Service struct {
	email    string
	hash     string
	secret   []byte
	tokenTTL time.Duration
	issuer   string
	audience string
	now      func() time.Time
}

// Config configures the auth service. Email and PasswordHash identify the
// single admin account; Secret signs tokens.
type Config struct {
	Email        string
	PasswordHash string
	Secret       string
	TokenTTL     time.Duration
	Issuer       string
	Audience     string
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	if strings.TrimSpace(cfg.Email) == "" || strings.TrimSpace(cfg.PasswordHash) == "" {
		return nil, errors.New("auth: admin email and password hash are required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-kvitka"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "kvitka-admin"
	}
	return &Service{
		email:    strings.ToLower(strings.TrimSpace(cfg.Email)),
		hash:     cfg.PasswordHash,
		secret:   []byte(secret),
		tokenTTL: ttl,
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}, nil
}

// Login verifies the credentials and returns a signed access token.
func (s *Service) Login(email, password string) (string, time.Time, error) {
	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))), []byte(s.email)) == 1
	passOK, err := argon2id.ComparePasswordAndHash(password, s.hash)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: compare password: %w", err)
	}
	if !emailOK || !passOK {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := s.now()
	expiry := now.Add(s.tokenTTL)
	token, err := jwt.NewBuilder().
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		Subject(s.email).
		IssuedAt(now).
		Expiration(expiry).
		Claim("role", "admin").
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: build token: %w", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return string(signed), expiry, nil
}

// ParseToken validates a token and returns the admin subject.
func (s *Service) ParseToken(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("auth: empty token")
	}
	parsed, err := jwt.ParseString(trimmed,
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithClock(jwt.ClockFunc(s.now)),
		jwt.WithValidate(true),
	)
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}
	role, _ := parsed.Get("role")
	if role != "admin" {
		return "", errors.New("auth: token lacks admin role")
	}
	return parsed.Subject(), nil
}
