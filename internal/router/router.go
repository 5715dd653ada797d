package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/zhipi-dev/zhipi-go-api/internal/config"
	"github.com/zhipi-dev/zhipi-go-api/internal/handler"
	"github.com/zhipi-dev/zhipi-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	PlanHandler   *handler.PlanHandler
	UploadHandler *handler.UploadHandler
	RecordHandler *handler.RecordHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/", handler.ServiceInfo(cfg))
	app.Get("/system/ip", handler.SystemIP())
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if deps.PlanHandler != nil {
		deps.PlanHandler.Register(app.Group("/plans"))
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.Register(app.Group("/upload"))
	}
	if deps.RecordHandler != nil {
		deps.RecordHandler.Register(app.Group("/records"))
	}

	// Stored images are served directly so record views can display them.
	app.Static("/data", cfg.DataDir)
}
