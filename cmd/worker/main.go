package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kvitka-ua/backend-kvitka/internal/config"
	"github.com/kvitka-ua/backend-kvitka/internal/events"
	"github.com/kvitka-ua/backend-kvitka/internal/gateway"
	"github.com/kvitka-ua/backend-kvitka/internal/lock"
	"github.com/kvitka-ua/backend-kvitka/internal/notify"
	"github.com/kvitka-ua/backend-kvitka/internal/obs"
	"github.com/kvitka-ua/backend-kvitka/internal/payment"
	"github.com/kvitka-ua/backend-kvitka/internal/store"
	"github.com/kvitka-ua/backend-kvitka/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "kvitka")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitPool(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

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

	sweeper := &worker.Sweeper{
		Invoices: invoices,
		Gateway:  gatewayClient,
		Reconciler: &payment.Reconciler{
			Ledger: payment.PGLedger{Pool: pool, Orders: orders, Invoices: invoices},
			Bus:    bus,
			Logger: logger.With().Str("component", "reconciler").Logger(),
		},
		Locker:    lock.Locker{R: redisClient},
		Logger:    logger,
		MaxAge:    cfg.IntentTTL,
		BatchSize: int32(cfg.InvoiceSweepBatch),
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Logger:      asynqLogger{logger},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(worker.TaskInvoiceSweep, sweeper.HandleSweep)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger: asynqLogger{logger},
	})
	interval := cfg.InvoiceSweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if _, err := scheduler.Register("@every "+interval.String(), asynq.NewTask(worker.TaskInvoiceSweep, nil)); err != nil {
		logger.Fatal().Err(err).Msg("register sweep schedule")
	}

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Run(mux) }()
	go func() { errCh <- scheduler.Run() }()

	logger.Info().Dur("interval", interval).Msg("worker starting")
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("worker stopped with error")
		}
	}
	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

// asynqLogger adapts zerolog to the asynq logging contract.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msgf("%v", args) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msgf("%v", args) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msgf("%v", args) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msgf("%v", args) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msgf("%v", args) }

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
