package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/clinic_backend/internal/api/http/handler"
	"github.com/Alijeyrad/clinic_backend/pkg/authorize"
)

func (r *Router) registerFeeRoutes(
	api fiber.Router,
	fh *handler.FeeHandler,
	authRequired fiber.Handler,
	requirePerm func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	// No group-level auth: the gateway callback is public.
	fees := api.Group("/fees")
	fees.Get("/payments/verify", fh.VerifyPayment)

	fees.Get("/", authRequired, requirePerm(authorize.ResourceFee, authorize.ActionList), fh.List)
	fees.Post("/", authRequired, requirePerm(authorize.ResourceFee, authorize.ActionCreate), fh.Create)
	fees.Get("/stats/revenue", authRequired, requirePerm(authorize.ResourceFeeStats, authorize.ActionRead), fh.Revenue)

	fees.Get("/:id", authRequired, requirePerm(authorize.ResourceFee, authorize.ActionRead), fh.Get)
	fees.Put("/:id", authRequired, requirePerm(authorize.ResourceFee, authorize.ActionUpdate), fh.Update)
	fees.Delete("/:id", authRequired, requirePerm(authorize.ResourceFee, authorize.ActionDelete), fh.Delete)
	fees.Post("/:id/pay", authRequired, requirePerm(authorize.ResourceFee, authorize.ActionPay), fh.Pay)
}
