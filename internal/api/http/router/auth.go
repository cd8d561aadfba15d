package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/clinic_backend/internal/api/http/handler"
)

func (r *Router) registerAuthRoutes(api fiber.Router, h *handler.AuthHandler, authRequired, limit fiber.Handler) {
	group := api.Group("/auth")
	group.Post("/login", limit, h.Login)
	group.Post("/signup", limit, h.Signup)
	group.Post("/refresh", limit, h.Refresh)
	group.Post("/invite/accept", limit, h.AcceptInvite)
	group.Get("/verify", authRequired, h.Verify)
	group.Post("/logout", authRequired, h.Logout)
}
