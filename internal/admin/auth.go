package admin

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const bearerPrefix = "Bearer "

// AuthMiddleware rejects requests whose Authorization header does not carry
// the configured bearer token.
func AuthMiddleware(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(auth, bearerPrefix) || strings.TrimPrefix(auth, bearerPrefix) != token {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
			})
		}
		return c.Next()
	}
}
