package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics" || path == "/graphql":
			ttl = "no-cache"

		case path == "/v1/label":
			ttl = "public, max-age=86400" // gazetteer only changes on deploy

		case path == "/v1/reports/nearby" || path == "/v1/routes/damages":
			ttl = "public, max-age=30"

		case path == "/v1/reports/stats":
			ttl = "public, max-age=60"

		case strings.HasPrefix(path, "/v1/cameras"), strings.HasPrefix(path, "/v1/detections"):
			ttl = "no-store" // streaming state and live detections

		case strings.HasPrefix(path, "/v1/reports"):
			ttl = "private, max-age=15"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=60"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
