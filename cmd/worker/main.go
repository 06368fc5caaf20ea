package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/oliveiraadan/equibid/internal/config"
	"github.com/oliveiraadan/equibid/internal/domain"
	"github.com/oliveiraadan/equibid/internal/handler"
	"github.com/oliveiraadan/equibid/internal/infra/postgresql"
	"github.com/oliveiraadan/equibid/internal/infra/postgresql/migrations"
	infraredis "github.com/oliveiraadan/equibid/internal/infra/redis"
	"github.com/oliveiraadan/equibid/internal/observability"
	"github.com/oliveiraadan/equibid/internal/provider"
	"github.com/oliveiraadan/equibid/internal/repository"
	"github.com/oliveiraadan/equibid/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const reclaimInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger("equibid-worker", cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		logger.Fatal("provider registry initialization failed", zap.Error(err))
	}

	jobRepo := repository.NewGormJobRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)
	contextRepo := repository.NewGormContextRepo(db)

	metrics := observability.NewMetrics()

	dispatcher, err := service.NewDispatcherService(
		jobRepo,
		attemptRepo,
		contextRepo,
		registry,
		rateLimiter,
		cfg.WorkerCount,
		cfg.PollInterval(),
		logger,
	)
	if err != nil {
		logger.Fatal("dispatcher initialization failed", zap.Error(err))
	}
	dispatcher.SetMetrics(metrics)

	reclaimer, err := service.NewReclaimerService(
		jobRepo,
		reclaimInterval,
		cfg.ClaimLease(),
		0,
		logger,
	)
	if err != nil {
		logger.Fatal("reclaimer initialization failed", zap.Error(err))
	}
	reclaimer.SetMetrics(metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Liveness and scrape endpoint only; the jobs API lives in cmd/server.
	metricsApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	metricsApp.Get("/livez", handler.LivezHandler())
	metricsApp.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	go func() {
		if err := metricsApp.Listen(fmt.Sprintf(":%d", cfg.MetricsPort)); err != nil {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()

	logger.Info("equibid worker started",
		zap.Int("workerCount", cfg.WorkerCount),
		zap.Duration("pollInterval", cfg.PollInterval()),
		zap.Duration("claimLease", cfg.ClaimLease()),
	)

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Start(groupCtx) })
	g.Go(func() error { return reclaimer.Start(groupCtx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Fatal("worker exited with error", zap.Error(err))
	}

	if err := metricsApp.Shutdown(); err != nil {
		logger.Error("metrics listener shutdown failed", zap.Error(err))
	}

	logger.Info("equibid worker stopped")
}

func buildRegistry(cfg *config.Config) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	if cfg.TelegramEnabled() {
		telegram, err := provider.NewTelegramProvider(cfg.TelegramAPIURL, cfg.TelegramBotToken)
		if err != nil {
			return nil, err
		}
		registry.Register(domain.ChannelTelegram, telegram)
	}

	if cfg.WhatsAppEnabled() {
		whatsapp, err := provider.NewWhatsAppProvider(provider.ZAPIConfig{
			BaseURL:       cfg.ZAPIBaseURL,
			InstanceID:    cfg.ZAPIInstanceID,
			InstanceToken: cfg.ZAPIInstanceToken,
			ClientToken:   cfg.ZAPIClientToken,
		})
		if err != nil {
			return nil, err
		}
		registry.Register(domain.ChannelWhatsApp, whatsapp)
	}

	return registry, nil
}
