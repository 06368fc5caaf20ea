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
	"github.com/oliveiraadan/equibid/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger("equibid-server", cfg.LogLevel)
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

	registry, err := buildRegistry(cfg)
	if err != nil {
		logger.Fatal("provider registry initialization failed", zap.Error(err))
	}

	jobRepo := repository.NewGormJobRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)
	contextRepo := repository.NewGormContextRepo(db)

	metrics := observability.NewMetrics()

	resolver, err := service.NewResolverService(jobRepo, contextRepo, registry, logger)
	if err != nil {
		logger.Fatal("resolver initialization failed", zap.Error(err))
	}
	resolver.SetMetrics(metrics)

	jobService, err := service.NewJobService(jobRepo, attemptRepo, logger)
	if err != nil {
		logger.Fatal("job service initialization failed", zap.Error(err))
	}
	jobService.SetDefaultMaxAttempts(cfg.MaxAttempts)

	app := fiber.New(fiber.Config{
		AppName:      "equibid-server",
		ErrorHandler: transport.ErrorHandler(logger),
	})

	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb, registry)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterWebhookRoutes(app, resolver); err != nil {
		logger.Fatal("webhook route registration failed", zap.Error(err))
	}
	if err := handler.RegisterJobRoutes(app, jobService); err != nil {
		logger.Fatal("job route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down http server")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("http server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("equibid server started", zap.Int("port", cfg.APIPort))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}

	logger.Info("equibid server stopped")
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
