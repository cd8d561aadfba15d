package http

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/clinic_backend/config"
	"github.com/Alijeyrad/clinic_backend/internal/api/http"
	"github.com/Alijeyrad/clinic_backend/pkg/logs"
)

func NewStartCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP API server",
		Long: `Start serving the clinic API on server.port. Pending migrations are applied
first when database.migrations.auto_migrate is set. SIGINT or SIGTERM drains
in-flight requests and the NATS connection before exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return err
			}

			// Install the logger before fx starts so every component uses it.
			logger, flush := logs.New(cfg)
			defer flush()
			slog.SetDefault(logger)

			return http.Start(cfg, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "shutdown-timeout", 30*time.Second, "bound on startup and graceful shutdown")

	return cmd
}
