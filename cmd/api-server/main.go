package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-portal-scheduling/internal/api"
	"github.com/hackgods/hospital-portal-scheduling/internal/appointment"
	"github.com/hackgods/hospital-portal-scheduling/internal/config"
	"github.com/hackgods/hospital-portal-scheduling/internal/db"
	"github.com/hackgods/hospital-portal-scheduling/internal/events"
	"github.com/hackgods/hospital-portal-scheduling/internal/logging"
	redisclient "github.com/hackgods/hospital-portal-scheduling/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("api-server", os.Getenv("APP_ENV"), "info")
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("api-server", cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.StorageDriver).
		Str("timezone", cfg.Clock().String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, pgPool, err := openRepository(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage setup error")
	}
	if pgPool != nil {
		defer pgPool.Close()
	}

	locker, rdb, err := newLocker(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("kafka publisher error")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing event publisher")
		}
	}()

	svc := appointment.NewService(repo, locker, publisher, cfg, logger)

	handler := api.NewRouter(api.RouterConfig{
		Service:  svc,
		JWT:      api.JWTConfig{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer},
		Location: cfg.Clock(),
		Logger:   logger,
		PgPool:   pgPool,
		Redis:    rdb,
		Env:      cfg.Env,
		Version:  cfg.Version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openRepository picks the appointment store named by STORAGE_DRIVER. The pool
// is nil for the in-memory store.
func openRepository(ctx context.Context, cfg config.Config, logger zerolog.Logger) (appointment.Repository, *pgxpool.Pool, error) {
	if cfg.StorageDriver != config.StoragePostgres {
		logger.Warn().Msg("using in-memory storage, data is lost on restart")
		return appointment.NewMemoryRepository(), nil, nil
	}

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.Clock())
	if err != nil {
		return nil, nil, err
	}

	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Int("applied", applied).Msg("connected to Postgres")

	return appointment.NewPgRepository(pool), pool, nil
}

// newLocker returns the Redis slot locker, or a no-op locker when REDIS_ADDR
// is unset.
func newLocker(ctx context.Context, cfg config.Config, logger zerolog.Logger) (redisclient.Locker, *redis.Client, error) {
	if cfg.RedisAddr == "" {
		return redisclient.NoopLocker{}, nil, nil
	}

	rdb, err := redisclient.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Dur("lock_ttl", cfg.LockTTL).Msg("connected to Redis")

	return redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL), rdb, nil
}

func newPublisher(cfg config.Config, logger zerolog.Logger) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}, nil
	}

	kp, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, "api-server", logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing appointment events")

	return kp, nil
}
