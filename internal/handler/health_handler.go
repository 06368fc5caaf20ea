package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oliveiraadan/equibid/internal/provider"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client, registry *provider.Registry) {
	app.Get("/healthz", LivezHandler())
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb, registry))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

// ReadyzHandler probes the two stores every request path depends on and
// reports which channels this process can serve.
func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client, registry *provider.Registry) fiber.Handler {
	probes := []struct {
		name string
		ping func(ctx context.Context) error
	}{
		{name: "postgres", ping: sqlDB.PingContext},
		{name: "redis", ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		checks := fiber.Map{}
		ready := true
		for _, probe := range probes {
			if err := probe.ping(ctx); err != nil {
				checks[probe.name] = "down"
				ready = false
			} else {
				checks[probe.name] = "ok"
			}
		}

		channels := []string{}
		if registry != nil {
			for _, channel := range registry.Channels() {
				channels = append(channels, channel.String())
			}
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if !ready {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status":   status,
			"checks":   checks,
			"channels": channels,
		})
	}
}
