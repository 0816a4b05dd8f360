package identity

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

type localsKey struct{}

// Required rejects requests without a valid bearer token and stores the
// verified Identity for downstream handlers.
func Required(gate Gate) fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(c, "missing bearer token")
		}

		who, err := gate.Verify(c.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				return unauthorized(c, "invalid or expired token")
			}

			if errors.Is(err, ErrNotConfigured) {
				problem := problems.NewStatusProblem(fiber.StatusServiceUnavailable).
					WithInstance(c.Path()).
					WithType("identity_not_configured").
					WithDetail(err.Error())

				return c.Status(fiber.StatusServiceUnavailable).JSON(problem)
			}

			problem := problems.NewStatusProblem(fiber.StatusBadGateway).
				WithInstance(c.Path()).
				WithType("identity_unavailable").
				WithDetail("could not verify token")

			return c.Status(fiber.StatusBadGateway).JSON(problem)
		}

		c.Locals(localsKey{}, who)

		return c.Next()
	}
}

// FromContext returns the identity stored by Required.
func FromContext(c fiber.Ctx) (Identity, bool) {
	who, ok := c.Locals(localsKey{}).(Identity)

	return who, ok
}

func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusUnauthorized).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}
