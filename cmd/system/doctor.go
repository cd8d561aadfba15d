package system

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/Alijeyrad/clinic_backend/config"
	"github.com/Alijeyrad/clinic_backend/internal/app"
	"github.com/Alijeyrad/clinic_backend/internal/service/auth"
)

func NewCreateDoctorCommand() *cobra.Command {
	var emailAddr, name, plain string

	cmd := &cobra.Command{
		Use:   "create-doctor",
		Short: "Create a doctor account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cfg)
			defer cancel()

			return withAuthService(ctx, cfg, func(svc auth.Service) error {
				ident, err := svc.CreateDoctor(ctx, emailAddr, name, plain)
				if err != nil {
					return fmt.Errorf("failed to create doctor: %w", err)
				}
				fmt.Printf("Doctor %s created with id %s.\n", ident.Email, ident.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&emailAddr, "email", "", "login email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&plain, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// withAuthService starts just the providers the auth service needs, runs fn
// and stops them again.
func withAuthService(ctx context.Context, cfg *config.Config, fn func(auth.Service) error) error {
	var svc auth.Service
	fxApp := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			app.ProvidePool,
			app.ProvideFieldCipher,
			app.ProvideStore,
			app.ProvideRedis,
			app.ProvideKV,
			app.ProvidePasswordHasher,
			app.ProvideTokenManager,
			app.ProvideExternalAuth,
			app.ProvideInviteStore,
			app.ProvideAuthService,
		),
		fx.Populate(&svc),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	)
	if err := fxApp.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = fxApp.Stop(context.Background()) }()

	return fn(svc)
}
