package ops

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/reqvault/reqvault/internal/repository"
)

type Handler struct {
	repo   repository.CaptureRepository
	logger *zerolog.Logger
}

func NewHandler(repo repository.CaptureRepository, logger *zerolog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Health reports database reachability.
func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.repo.Ping(c.UserContext()); err != nil {
		h.logger.Error().Err(err).Msg("Health check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// Ready proves the database accepts writes via a throwaway insert+delete.
func (h *Handler) Ready(c *fiber.Ctx) error {
	if err := h.repo.ProbeWrite(c.UserContext()); err != nil {
		h.logger.Error().Err(err).Msg("Readiness probe failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
