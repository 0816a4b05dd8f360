package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/upstream"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func tooManyRequests(c fiber.Ctx, retryAfter time.Duration) error {
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))

	problem := problems.NewStatusProblem(429).
		WithInstance(c.Path()).
		WithType("rate_limited").
		WithDetail("too many requests, retry in " + strconv.Itoa(seconds) + "s")

	return c.Status(fiber.StatusTooManyRequests).JSON(problem)
}

func serviceUnavailable(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(503).
		WithInstance(c.Path()).
		WithType("not_configured").
		WithDetail(detail)

	return c.Status(fiber.StatusServiceUnavailable).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleUpstreamError maps a provider failure onto a problem response.
func handleUpstreamError(c fiber.Ctx, err error) error {
	var upstreamErr *upstream.Error

	switch {
	case upstream.IsNotFound(err):
		return notFound(c, upstream.Message(err))

	case upstream.IsTimeout(err):
		problem := problems.NewStatusProblem(504).
			WithInstance(c.Path()).
			WithType("upstream_timeout").
			WithDetail(upstream.Message(err))

		return c.Status(fiber.StatusGatewayTimeout).JSON(problem)

	case errors.As(err, &upstreamErr) && isRejectedCredential(upstreamErr.StatusCode):
		return unauthorized(c, upstream.Message(err))

	case errors.As(err, &upstreamErr):
		problem := problems.NewStatusProblem(502).
			WithInstance(c.Path()).
			WithType("upstream_error").
			WithDetail(upstream.Message(err))

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		return internalError(c, err)
	}
}

func isRejectedCredential(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
