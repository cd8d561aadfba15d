package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/clinic_backend/internal/api/http/handler"
	"github.com/Alijeyrad/clinic_backend/pkg/authorize"
)

func (r *Router) registerDiagnosticRoutes(
	api fiber.Router,
	dh *handler.DiagnosticHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	d := api.Group("/diagnostics/:patientId", authRequired)

	d.Get("/", requirePerm(authorize.ResourceDiagnostic, authorize.ActionList), dh.List)
	d.Post("/", requirePerm(authorize.ResourceDiagnostic, authorize.ActionCreate), dh.Upload)
	d.Get("/:id/download", requirePerm(authorize.ResourceDiagnostic, authorize.ActionRead), dh.Download)
	d.Delete("/:id", requirePerm(authorize.ResourceDiagnostic, authorize.ActionDelete), dh.Delete)
}
