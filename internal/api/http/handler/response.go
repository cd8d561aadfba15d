package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/clinic_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/clinic_backend/pkg/reqctx"
)

func ok(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"data": data})
}

func created(c fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": data})
}

func noContent(c fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func unauthorized(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
}

func forbidden(c fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
}

func forbiddenMsg(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": msg})
}

func notFound(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": msg})
}

func conflict(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": msg})
}

// storageUnavailable tells the client to retry later.
func storageUnavailable(c fiber.Ctx, err error) error {
	logError(c, "storage failure", err)
	return c.Status(fiber.StatusBadGateway).JSON(serverError(c, "storage unavailable"))
}

// internalError logs err and answers with a stable message.
func internalError(c fiber.Ctx, err error) error {
	logError(c, "unhandled error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(serverError(c, "internal server error"))
}

// serverError carries the request id so a failure reported by a user can be
// found in the logs.
func serverError(c fiber.Ctx, msg string) fiber.Map {
	body := fiber.Map{"error": msg}
	if rid, ok := middleware.RequestIDFromFiber(c); ok {
		body["request_id"] = rid
	}
	return body
}

// request_id is added by the logging handler from the context.
func logError(c fiber.Ctx, msg string, err error) {
	slog.ErrorContext(c.Context(), msg,
		"method", c.Method(),
		"path", c.Path(),
		"err", err,
	)
}

// ErrorHandler renders errors returned by middleware and handlers. Fiber
// errors keep their status and message; anything else becomes a 500.
func ErrorHandler(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code >= fiber.StatusInternalServerError {
			logError(c, "request failed", err)
		}
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return internalError(c, err)
}

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

func principal(c fiber.Ctx) *reqctx.Principal {
	if p, ok := middleware.PrincipalFromFiber(c); ok {
		return p
	}
	return reqctx.PrincipalFromContext(c.Context())
}

func uuidParam(c fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// optionalUUID parses s, returning nil for an empty string.
func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
