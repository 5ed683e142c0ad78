package server

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/reqvault/reqvault/internal/admin"
	"github.com/reqvault/reqvault/internal/capture"
	"github.com/reqvault/reqvault/internal/config"
	"github.com/reqvault/reqvault/internal/metrics"
	"github.com/reqvault/reqvault/internal/ops"
	"github.com/reqvault/reqvault/internal/repository"
)

// New assembles the fiber app. Route order matters: the operational and admin
// surfaces register first so the catch-all capture handler never sees them.
func New(cfg *config.Config, logger *zerolog.Logger, repo repository.CaptureRepository, collector *metrics.Collector) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		BodyLimit:             cfg.Capture.MaxUploadBytes,
		DisableStartupMessage: true,
	})

	opsHandler := ops.NewHandler(repo, logger)
	app.Get("/healthz", opsHandler.Health)
	app.Get("/readyz", opsHandler.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	// The operational paths are excluded from capture by path, not by method:
	// a POST /healthz must not fall through to the catch-all and get stored.
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		app.All(path, func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{"error": "method not allowed"})
		})
	}

	adminHandler := admin.NewHandler(repo, logger)
	adminGroup := app.Group("/admin", admin.AuthMiddleware(cfg.Admin.Token))
	adminGroup.Get("/requests", adminHandler.ListRequests)
	adminGroup.Get("/requests/:id", adminHandler.GetRequest)
	adminGroup.Get("/requests/:id/files", adminHandler.ListRequestFiles)
	adminGroup.Get("/files/:fileId", adminHandler.DownloadFile)
	adminGroup.Delete("/requests/:id", adminHandler.DeleteRequest)
	adminGroup.Delete("/older-than", adminHandler.DeleteOlderThan)
	// Nothing under /admin is ever captured, matched or not.
	adminGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	})

	captureHandler := capture.NewHandler(&cfg.Capture, logger, repo, collector)
	app.All("/*", captureHandler.Handle)

	return app
}
