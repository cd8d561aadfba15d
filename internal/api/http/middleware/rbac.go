package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/clinic_backend/pkg/authorize"
)

// RequirePermission checks the caller's role against the casbin policy. It
// must run after AuthRequired. Record ownership is checked later by the
// services.
func RequirePermission(auth authorize.IAuthorization, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		err := authorize.EnforceContext(c.Context(), auth, resource, action)
		switch {
		case err == nil:
			return c.Next()
		case errors.Is(err, authorize.ErrNoPrincipalInContext):
			return fiber.ErrUnauthorized
		case errors.Is(err, authorize.ErrForbidden):
			return fiber.NewError(fiber.StatusForbidden, "forbidden")
		}
		return err
	}
}
