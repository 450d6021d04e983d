package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-archiver/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
}

// RegisterRoutes wires the ops HTTP routes. The ticket pipeline itself has
// no network API; this surface exists for probes and counters only.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)
}
