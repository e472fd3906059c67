package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/auth"
	"github.com/kvitka-ua/backend-kvitka/internal/checkout"
	"github.com/kvitka-ua/backend-kvitka/internal/common"
	"github.com/kvitka-ua/backend-kvitka/internal/config"
	"github.com/kvitka-ua/backend-kvitka/internal/db"
	"github.com/kvitka-ua/backend-kvitka/internal/events"
	"github.com/kvitka-ua/backend-kvitka/internal/gateway"
	"github.com/kvitka-ua/backend-kvitka/internal/health"
	"github.com/kvitka-ua/backend-kvitka/internal/notify"
	"github.com/kvitka-ua/backend-kvitka/internal/obs"
	"github.com/kvitka-ua/backend-kvitka/internal/order"
	"github.com/kvitka-ua/backend-kvitka/internal/payment"
	"github.com/kvitka-ua/backend-kvitka/internal/ratelimit"
	"github.com/kvitka-ua/backend-kvitka/internal/resilience"
	"github.com/kvitka-ua/backend-kvitka/internal/security"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "kvitka")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	resilience.MustRegisterMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "kvitka-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	pool := mustInitPool(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger, metricsEnabled)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	validate := validator.New()

	orders := store.Orders{DB: pool}
	invoices := store.Invoices{DB: pool}
	products := store.Products{DB: pool}
	eventStore := store.Events{DB: pool}

	chatSender, err := notify.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise telegram sender")
	}
	dispatcher := &notify.Dispatcher{
		Orders:   orders,
		Products: products,
		Chat:     chatSender,
		Pixel:    notify.NewPixelClient(cfg.PixelEndpoint, cfg.PixelToken, 5*time.Second),
		Logger:   logger.With().Str("component", "notify").Logger(),
	}
	bus := &events.Bus{
		Store:     eventStore,
		Logger:    logger.With().Str("component", "events").Logger(),
		Notifiers: []events.Notifier{dispatcher},
	}

	gatewayClient := gateway.NewClient(
		cfg.GatewayBaseURL,
		cfg.GatewayAPIToken,
		cfg.GatewayTimeout,
		cfg.GatewayRetryAttempts,
		cfg.GatewayRetryBase,
		cfg.GatewayRetryJitter,
		logger.With().Str("component", "gateway").Logger(),
	)

	paymentSvc := &payment.Service{
		Gateway:    gatewayClient,
		Orders:     orders,
		Invoices:   invoices,
		Builder:    payment.NewBuilder(),
		Logger:     logger.With().Str("component", "payment").Logger(),
		Currency:   cfg.CurrencyCode,
		WebhookURL: cfg.PublicBaseURL + "/api/v1/webhooks/gateway",
		IntentTTL:  cfg.IntentTTL,
	}
	paymentHandler := &payment.Handler{Service: paymentSvc, Logger: logger}
	reconciler := &payment.Reconciler{
		Ledger: payment.PGLedger{Pool: pool, Orders: orders, Invoices: invoices},
		Bus:    bus,
		Logger: logger.With().Str("component", "reconciler").Logger(),
	}
	webhookHandler := &payment.WebhookHandler{
		Reconciler: reconciler,
		Verifier:   payment.Verifier{Secret: []byte(cfg.GatewayWebhookSecret)},
		Redis:      redisClient,
		ReplayTTL:  cfg.WebhookReplayTTL,
		Logger:     logger.With().Str("component", "webhook").Logger(),
	}
	reviewHandler := &payment.ReviewHandler{Invoices: invoices, Logger: logger}

	checkoutHandler := &checkout.Handler{
		Signer:      checkout.Signer{PublicKey: cfg.CheckoutPublicKey, PrivateKey: cfg.CheckoutPrivateKey},
		Orders:      orders,
		Validate:    validate,
		Logger:      logger.With().Str("component", "checkout").Logger(),
		CheckoutURL: cfg.CheckoutURL,
		Currency:    cfg.CurrencyCode,
		ResultURL:   cfg.PublicBaseURL + "/order/result",
	}

	orderSvc := &order.Service{
		Pool:     pool,
		Orders:   orders,
		Bus:      bus,
		Logger:   logger.With().Str("component", "order").Logger(),
		Currency: cfg.CurrencyCode,
	}
	orderHandler := &order.Handler{Service: orderSvc, Validate: validate, Logger: logger}

	var authHandler *auth.Handler
	var authMiddleware auth.Middleware
	adminEnabled := cfg.AdminEmail != ""
	if adminEnabled {
		authSvc, err := auth.NewService(auth.Config{
			Email:        cfg.AdminEmail,
			PasswordHash: cfg.AdminPasswordHash,
			Secret:       cfg.AuthSecret,
			TokenTTL:     cfg.AuthTokenTTL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise auth service")
		}
		authHandler = &auth.Handler{Service: authSvc, Logger: logger}
		authMiddleware = auth.Middleware{Service: authSvc}
	}

	intentLimiter, err := ratelimit.New(redisClient, cfg.RateLimitIntent, "rl:intent")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise intent rate limiter")
	}
	signLimiter, err := ratelimit.New(redisClient, cfg.RateLimitSign, "rl:sign")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise sign rate limiter")
	}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker: readinessChecker{db: pool, redis: redisClient},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/payments", func(p chi.Router) {
			p.With(ratelimit.Middleware(intentLimiter, logger), idem.Middleware).
				Post("/{action}", paymentHandler.CreateIntent)
			p.Get("/{orderId}/status", paymentHandler.Status)
		})

		v.Post("/webhooks/gateway", webhookHandler.ServeHTTP)

		v.Route("/checkout", func(c chi.Router) {
			c.With(ratelimit.Middleware(signLimiter, logger)).Post("/sign", checkoutHandler.Sign)
			c.Get("/{orderId}/redirect", checkoutHandler.Redirect)
		})

		v.Route("/orders", func(o chi.Router) {
			o.With(idem.Middleware).Post("/", orderHandler.Create)
			o.Get("/{orderId}", orderHandler.Get)
		})

		if adminEnabled {
			v.Route("/admin", func(admin chi.Router) {
				admin.Post("/login", authHandler.Login)
				admin.Group(func(protected chi.Router) {
					protected.Use(authMiddleware.RequireAdmin)
					protected.Get("/invoices/flagged", reviewHandler.ListFlagged)
				})
			})
		}
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func mustInitPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "kvitka-api"
	if cfg.DBMaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.DBMaxOpenConns)
	}
	if cfg.DBMinIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.DBMinIdleConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metricsEnabled bool) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
