package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/clinic_backend/internal/api/http/handler"
	"github.com/Alijeyrad/clinic_backend/pkg/authorize"
)

func (r *Router) registerPatientRoutes(
	api fiber.Router,
	ph *handler.PatientHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	patients := api.Group("/patients", authRequired)

	patients.Get("/", requirePerm(authorize.ResourcePatient, authorize.ActionList), ph.List)
	patients.Get("/pending", requirePerm(authorize.ResourcePatient, authorize.ActionList), ph.ListPending)
	patients.Post("/", requirePerm(authorize.ResourcePatient, authorize.ActionCreate), ph.Create)

	p := patients.Group("/:id")
	p.Get("/", requirePerm(authorize.ResourcePatient, authorize.ActionRead), ph.Get)
	p.Put("/", requirePerm(authorize.ResourcePatient, authorize.ActionUpdate), ph.Update)
	p.Put("/approve", requirePerm(authorize.ResourcePatient, authorize.ActionApprove), ph.Approve)
	p.Delete("/", requirePerm(authorize.ResourcePatient, authorize.ActionDelete), ph.Delete)
}
