package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/clinic_backend/internal/service/auth"
	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
)

const LocalsPrincipal = "principal"

// Authenticator resolves a bearer credential. auth.Service satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*reqctx.Principal, error)
}

// AuthRequired runs the authorization gate. On success the principal is
// attached to the request context and to Locals; handlers never see the raw
// token.
func AuthRequired(gate Authenticator) fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, auth.ErrUnauthenticated.Error())
		}

		p, err := gate.Authenticate(c.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrPendingApproval), errors.Is(err, auth.ErrProfileMissing):
				return fiber.NewError(fiber.StatusForbidden, err.Error())
			case errors.Is(err, auth.ErrUnauthenticated),
				errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrSessionNotFound):
				return fiber.NewError(fiber.StatusUnauthorized, err.Error())
			}
			return err
		}

		c.Locals(LocalsPrincipal, p)
		c.SetContext(reqctx.WithPrincipal(c.Context(), p))
		return c.Next()
	}
}

// PrincipalFromFiber returns the principal set by AuthRequired.
func PrincipalFromFiber(c fiber.Ctx) (*reqctx.Principal, bool) {
	p, ok := c.Locals(LocalsPrincipal).(*reqctx.Principal)
	return p, ok && p != nil
}

func bearerToken(h string) (string, bool) {
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
