package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/clinic_backend/config"
	"github.com/Alijeyrad/clinic_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/clinic_backend/internal/api/http/router"
	"github.com/Alijeyrad/clinic_backend/internal/repo"
	"github.com/Alijeyrad/clinic_backend/internal/service/events"
	"github.com/Alijeyrad/clinic_backend/internal/service/fee"
	"github.com/Alijeyrad/clinic_backend/pkg/authorize"
	"github.com/Alijeyrad/clinic_backend/pkg/crypto"
	"github.com/Alijeyrad/clinic_backend/pkg/database"
	"github.com/Alijeyrad/clinic_backend/pkg/email"
	"github.com/Alijeyrad/clinic_backend/pkg/observability"
	redispkg "github.com/Alijeyrad/clinic_backend/pkg/redis"
	s3pkg "github.com/Alijeyrad/clinic_backend/pkg/s3"
	"github.com/Alijeyrad/clinic_backend/pkg/sms"
	zarinpalpkg "github.com/Alijeyrad/clinic_backend/pkg/zarinpal"
)

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvidePool),
	fx.Provide(ProvideFieldCipher),
	fx.Provide(ProvideStore),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideKV),
	fx.Provide(ProvideLimiterStorage),
	fx.Provide(ProvideAuthorization),
	fx.Provide(ProvideEmailClient),
	fx.Provide(ProvideSMSClient),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideMetrics),
	fx.Provide(ProvideS3Client),
	fx.Provide(ProvidePaymentGateway),
	fx.Provide(ProvideNatsClient),
	fx.Provide(ProvidePublisher),
	fx.Provide(ProvideReadiness),
)

func ProvidePool(lc fx.Lifecycle, cfg *config.Config) (*pgxpool.Pool, error) {
	ctx := context.Background()
	pool, err := database.NewPoolFromCentral(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrations.AutoMigrate {
		applied, err := database.NewMigrator(pool).Up(ctx)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		slog.Info("database migrated", "applied", applied)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing main database pool")
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

// ProvideFieldCipher seals the clinical fields of patient rows. The key is
// checked by config validation.
func ProvideFieldCipher(cfg *config.Config) (*crypto.FieldCipher, error) {
	return crypto.NewFieldCipher(cfg.Authentication.EncryptionKey)
}

func ProvideStore(pool *pgxpool.Pool, cipher *crypto.FieldCipher) *repo.Store {
	return repo.NewPGStore(pool, cipher)
}

func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	rdb, err := redispkg.NewRedisFromCentral(cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideKV(rdb *redis.Client) redispkg.KV {
	return redispkg.NewStore(rdb)
}

func ProvideLimiterStorage(rdb *redis.Client) fiber.Storage {
	return middleware.NewRedisStorage(rdb)
}

func ProvideAuthorization(cfg *config.Config) (authorize.IAuthorization, error) {
	acfg, err := authorize.FromCentralConfig(cfg.Authorization)
	if err != nil {
		return nil, err
	}
	return authorize.New(context.Background(), acfg)
}

func ProvideEmailClient(cfg *config.Config) (*email.Client, error) {
	return email.New(cfg.Email)
}

func ProvideSMSClient(cfg *config.Config) (*sms.Client, error) {
	return sms.NewFromConfig(cfg.SMS)
}

func ProvideS3Client(cfg *config.Config) (*s3pkg.Client, error) {
	return s3pkg.New(context.Background(), cfg.S3)
}

// ProvidePaymentGateway returns a nil gateway when online payment is off.
func ProvidePaymentGateway(cfg *config.Config) fee.Gateway {
	if !cfg.Payment.Enabled {
		return nil
	}
	return zarinpalpkg.New(cfg.Payment.ZarinPal)
}

// ProvideNatsClient returns nil when no URL is configured; events are then
// dropped and the notify worker does not start.
func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	if cfg.Nats.URL == "" {
		slog.Info("nats.url is empty; domain events are disabled")
		return nil, nil
	}
	nc, err := nats.Connect(cfg.Nats.URL, nats.Name(cfg.Observability.ServiceName))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func ProvidePublisher(nc *nats.Conn, cfg *config.Config) events.Publisher {
	if nc == nil {
		return events.Noop{}
	}
	return events.NewNATS(nc, cfg.Nats.SubjectPrefix)
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(), observability.FromCentralConfig(cfg))
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}

// ProvideMetrics depends on the provider so instruments bind to the
// installed meter provider rather than the global no-op.
func ProvideMetrics(_ *observability.Provider) (*observability.Metrics, error) {
	return observability.NewMetrics()
}

func ProvideReadiness(pool *pgxpool.Pool, rdb *redis.Client, blobs *s3pkg.Client) router.ReadinessProbe {
	return func(ctx context.Context) error {
		var errs []error
		if err := pool.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
		if err := blobs.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("s3: %w", err))
		}
		if err := errors.Join(errs...); err != nil {
			slog.WarnContext(ctx, "readiness probe failed", "err", err)
			return err
		}
		return nil
	}
}
