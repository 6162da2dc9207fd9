package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/haulr/haulr/internal/config"
	"github.com/haulr/haulr/internal/identity"
	"github.com/haulr/haulr/internal/infra"
	"github.com/haulr/haulr/internal/logging"
	"github.com/haulr/haulr/internal/notification"
	"github.com/haulr/haulr/internal/otp"
	"github.com/haulr/haulr/internal/routes"
	"github.com/haulr/haulr/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppName)

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := identity.Migrate(ctx, db); err != nil {
			logger.Error("migrate schema", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("DATABASE_URL not set, users are kept in memory")
	}

	var (
		cache *redis.Client
		gate  otp.Gate
	)
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Error("configure redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()

		probe := infra.NewProbe("redis", infra.PingFunc(func(ctx context.Context) error {
			return cache.Ping(ctx).Err()
		}), logger)
		if err := probe.Check(ctx); err != nil {
			logger.Warn("redis unreachable at startup, continuing in degraded mode", "error", err)
		}
		if err := probe.Start(cfg.RedisProbeInterval); err != nil {
			logger.Error("start redis probe", "error", err)
			os.Exit(1)
		}
		defer probe.Shutdown()
		gate = probe
	} else {
		logger.Warn("REDIS_URL not set, OTPs are kept in memory")
	}

	notifier, closeNotifier, err := buildNotifier(cfg, logger)
	if err != nil {
		logger.Error("configure sms provider", "provider", cfg.SMSProvider, "error", err)
		os.Exit(1)
	}
	defer closeNotifier()

	srv, err := server.New(routes.Deps{
		Cfg:       cfg,
		DB:        db,
		Cache:     cache,
		Logger:    logger,
		Notifier:  notifier,
		RedisGate: gate,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen(logger)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

func buildNotifier(cfg config.Config, logger *slog.Logger) (notification.Notifier, func(), error) {
	switch cfg.SMSProvider {
	case config.SMSProviderNSQ:
		n, err := notification.NewNSQNotifier(cfg.NSQAddress, cfg.NSQTopic)
		if err != nil {
			return nil, nil, err
		}
		return n, n.Close, nil
	case config.SMSProviderTwilio:
		return notification.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber), func() {}, nil
	default:
		return notification.NewLoggerNotifier(logger), func() {}, nil
	}
}
