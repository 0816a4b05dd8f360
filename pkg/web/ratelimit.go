package web

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/ratelimit"
	"github.com/gofiber/fiber/v3"
)

// RateLimit limits requests per client IP. A failing limiter store lets
// requests through.
func RateLimit(limiter ratelimit.Limiter, logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		decision, err := limiter.Allow(c.Context(), c.IP())
		if err != nil {
			logger.WarnContext(c.Context(), "Rate limiter unavailable, allowing request", "error", err)

			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			return tooManyRequests(c, decision.RetryAfter(time.Now()))
		}

		return c.Next()
	}
}
