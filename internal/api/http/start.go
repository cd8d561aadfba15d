package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/clinic_backend/config"
	"github.com/Alijeyrad/clinic_backend/internal/api/http/router"
	"github.com/Alijeyrad/clinic_backend/internal/app"
)

// Start runs the API until SIGINT or SIGTERM. timeout bounds both startup
// (migrations, broker and store connections) and graceful shutdown.
func Start(cfg *config.Config, timeout time.Duration) error {
	api := fx.New(
		fx.Supply(cfg),
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.SlogLogger{Logger: slog.Default().With("component", "fx")}
			l.UseLogLevel(slog.LevelDebug)
			return l
		}),
		app.InfraModule,
		app.ServiceModule,
		app.WorkerModule,
		router.Module,
		Module,

		// NewServer returns *fiber.App; invoking it registers the listen hook.
		fx.Invoke(func(*fiber.App) {}),

		fx.StartTimeout(timeout),
		fx.StopTimeout(timeout),
	)
	if err := api.Err(); err != nil {
		return fmt.Errorf("assemble api: %w", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), api.StartTimeout())
	defer cancel()
	if err := api.Start(startCtx); err != nil {
		return fmt.Errorf("start api: %w", err)
	}
	slog.Info("clinic api started", "port", cfg.Server.Port, "env", cfg.Server.Environment)

	sig := <-api.Wait()
	slog.Info("clinic api stopping", "signal", sig.Signal.String())

	stopCtx, cancelStop := context.WithTimeout(context.Background(), api.StopTimeout())
	defer cancelStop()
	return api.Stop(stopCtx)
}
