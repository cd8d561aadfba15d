package system

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/clinic_backend/internal/service/auth"
	"github.com/Alijeyrad/clinic_backend/pkg/database"
)

func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database, migrate it and bootstrap the first doctor",
		Long: `Create the application database if it is missing, apply every migration
and, when bootstrap.doctor_email is set, create the doctor account.
Running it again is safe: an existing doctor is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cfg)
			defer cancel()

			fmt.Println("Initializing database...")
			if err := database.EnsureDatabase(ctx, database.FromCentralConfig(cfg.Database)); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			applied, err := migrate(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("Database ready (%d migrations applied).\n", applied)

			b := cfg.Bootstrap
			if b.DoctorEmail == "" {
				fmt.Println("bootstrap.doctor_email is empty; skipping doctor account.")
				return nil
			}
			err = withAuthService(ctx, cfg, func(svc auth.Service) error {
				_, err := svc.CreateDoctor(ctx, b.DoctorEmail, b.DoctorName, b.DoctorPassword)
				return err
			})
			if errors.Is(err, auth.ErrEmailTaken) {
				fmt.Printf("Doctor %s already exists.\n", b.DoctorEmail)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to create doctor: %w", err)
			}
			fmt.Printf("Doctor %s created.\n", b.DoctorEmail)
			return nil
		},
	}

	return cmd
}
