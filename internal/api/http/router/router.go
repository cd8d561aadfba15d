package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/Alijeyrad/clinic_backend/config"
	"github.com/Alijeyrad/clinic_backend/internal/api/http/handler"
	"github.com/Alijeyrad/clinic_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/clinic_backend/internal/service/appointment"
	"github.com/Alijeyrad/clinic_backend/internal/service/auth"
	"github.com/Alijeyrad/clinic_backend/internal/service/diagnostic"
	"github.com/Alijeyrad/clinic_backend/internal/service/fee"
	"github.com/Alijeyrad/clinic_backend/internal/service/patient"
	"github.com/Alijeyrad/clinic_backend/pkg/authorize"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

// ReadinessProbe reports whether the backing stores answer.
type ReadinessProbe func(ctx context.Context) error

type Params struct {
	fx.In

	Cfg            *config.Config
	Auth           authorize.IAuthorization
	AuthSvc        auth.Service
	PatientSvc     patient.Service
	AppointmentSvc appointment.Service
	FeeSvc         fee.Service
	DiagnosticSvc  diagnostic.Service

	// LimiterStorage shares rate-limit counters; nil keeps them in memory.
	LimiterStorage fiber.Storage  `optional:"true"`
	Ready          ReadinessProbe `optional:"true"`
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Initialize Middlewares
	authRequired := middleware.AuthRequired(r.p.AuthSvc)
	authLimit := middleware.NewLimiter(r.p.LimiterStorage, r.p.Cfg.Server.RateLimit.RequestsPerMinute)

	// Permission helper
	requirePerm := func(res authorize.Resource, act authorize.Action) fiber.Handler {
		return middleware.RequirePermission(r.p.Auth, res, act)
	}

	// 3. Initialize Handlers
	authH := handler.NewAuthHandler(r.p.AuthSvc)
	patientH := handler.NewPatientHandler(r.p.PatientSvc)
	appointmentH := handler.NewAppointmentHandler(r.p.AppointmentSvc)
	feeH := handler.NewFeeHandler(r.p.FeeSvc)
	diagnosticH := handler.NewDiagnosticHandler(r.p.DiagnosticSvc, int64(r.p.Cfg.Diagnostics.MaxSizeMB)<<20)

	api := app.Group("/api/v1")

	// 4. Delegate to sub-files
	r.registerAuthRoutes(api, authH, authRequired, authLimit)
	r.registerPatientRoutes(api, patientH, authRequired, requirePerm)
	r.registerAppointmentRoutes(api, appointmentH, authRequired, requirePerm)
	r.registerFeeRoutes(api, feeH, authRequired, requirePerm)
	r.registerDiagnosticRoutes(api, diagnosticH, authRequired, requirePerm)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	ready := healthcheck.New(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			if r.p.Ready == nil {
				return true
			}
			ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()
			return r.p.Ready(ctx) == nil
		},
	})

	app.Get("/health", healthcheck.New())
	app.Get("/health/ready", ready)
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, ready)

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		app.Get(MetricsPath(r.p.Cfg), adaptor.HTTPHandler(promhttp.Handler()))
	}
}

func MetricsPath(cfg *config.Config) string {
	if p := cfg.Observability.Metrics.Path; p != "" {
		return p
	}
	return "/metrics"
}

// SystemPaths are the probe and scrape routes, which request
// instrumentation leaves out.
func SystemPaths(cfg *config.Config) []string {
	return []string{
		"/health",
		"/health/ready",
		healthcheck.LivenessEndpoint,
		healthcheck.ReadinessEndpoint,
		MetricsPath(cfg),
	}
}
