package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mesa-digital/api/internal/config"
	"github.com/mesa-digital/api/internal/database"
	"github.com/mesa-digital/api/internal/idempotency"
	"github.com/mesa-digital/api/internal/metrics"
	mw "github.com/mesa-digital/api/internal/middleware"
	"github.com/mesa-digital/api/internal/printing"
	"github.com/mesa-digital/api/internal/router"
	"github.com/mesa-digital/api/internal/storage"
	"github.com/mesa-digital/api/internal/ws"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run(ctx)

	objects, err := storage.NewFS(cfg.StorageDir, cfg.StoragePublicURL)
	if err != nil {
		return err
	}

	idem, closeIdem, err := newIdempotencyStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeIdem()

	publisher := newPublisher(cfg)
	defer publisher.Close() //nolint:errcheck
	dispatcher := printing.NewDispatcher(queries, publisher, cfg.PrintMaxAttempts, metrics.RecordPrintDispatch)
	if err := dispatcher.Start(cfg.PrintSweepSpec); err != nil {
		return err
	}
	defer dispatcher.Stop()

	limiter := mw.NewRateLimiter(cfg.OrderRateLimit, cfg.OrderRateBurst)
	go every(ctx, time.Minute, limiter.Cleanup)

	r := router.New(cfg, queries, pool, hub, router.Infra{
		Objects:     objects,
		Printer:     dispatcher,
		Idempotency: idem,
		OrderLimit:  limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.LogFormat == "console" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	log.Logger = logger
}

// newIdempotencyStore uses Redis when REDIS_URL is set and an in-process
// store otherwise.
func newIdempotencyStore(ctx context.Context, cfg *config.Config) (idempotency.Store, func(), error) {
	if cfg.RedisURL == "" {
		mem := idempotency.NewMemoryStore(cfg.IdempotencyTTL)
		go every(ctx, 10*time.Minute, mem.Purge)
		log.Info().Msg("idempotency: in-memory store")
		return mem, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close() //nolint:errcheck
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("idempotency: redis store")
	return idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL), func() { rdb.Close() }, nil //nolint:errcheck
}

func newPublisher(cfg *config.Config) printing.Publisher {
	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		log.Warn().Msg("printing: no KAFKA_BROKERS, receipts go to the log")
		return printing.LogPublisher{}
	}
	log.Info().Strs("brokers", brokers).Str("topic", cfg.PrintTopic).Msg("printing: kafka publisher")
	return printing.NewKafkaPublisher(printing.NewKafkaWriter(brokers, cfg.PrintTopic))
}

func every(ctx context.Context, d time.Duration, fn func()) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
