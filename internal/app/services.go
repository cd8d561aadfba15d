package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/Alijeyrad/clinic_backend/config"
	"github.com/Alijeyrad/clinic_backend/internal/repo"
	"github.com/Alijeyrad/clinic_backend/internal/service/appointment"
	"github.com/Alijeyrad/clinic_backend/internal/service/auth"
	"github.com/Alijeyrad/clinic_backend/internal/service/credential"
	"github.com/Alijeyrad/clinic_backend/internal/service/diagnostic"
	"github.com/Alijeyrad/clinic_backend/internal/service/events"
	"github.com/Alijeyrad/clinic_backend/internal/service/fee"
	"github.com/Alijeyrad/clinic_backend/internal/service/invite"
	"github.com/Alijeyrad/clinic_backend/internal/service/notify"
	"github.com/Alijeyrad/clinic_backend/internal/service/patient"
	"github.com/Alijeyrad/clinic_backend/pkg/email"
	"github.com/Alijeyrad/clinic_backend/pkg/extauth"
	"github.com/Alijeyrad/clinic_backend/pkg/observability"
	pasetotoken "github.com/Alijeyrad/clinic_backend/pkg/paseto"
	redispkg "github.com/Alijeyrad/clinic_backend/pkg/redis"
	s3pkg "github.com/Alijeyrad/clinic_backend/pkg/s3"
	"github.com/Alijeyrad/clinic_backend/pkg/sms"
	"github.com/Alijeyrad/clinic_backend/pkg/util/password"
)

// ServiceModule provides all application services.
var ServiceModule = fx.Module("services",
	fx.Provide(ProvidePasswordHasher),
	fx.Provide(ProvideTokenManager),
	fx.Provide(ProvideExternalAuth),
	fx.Provide(ProvideInviteStore),
	fx.Provide(ProvideCredentialIssuer),
	fx.Provide(ProvideCredentialDeliverer),
	fx.Provide(ProvideAuthService),
	fx.Provide(ProvideDiagnosticService),
	fx.Provide(ProvidePatientService),
	fx.Provide(ProvideAppointmentService),
	fx.Provide(ProvideFeeService),
	fx.Provide(ProvideNotifier),
)

func ProvidePasswordHasher(cfg *config.Config) *password.Hasher {
	return password.New(password.FromCentralConfig(cfg.Password))
}

func ProvideTokenManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewFromCentralConfig(cfg)
}

// ProvideExternalAuth returns nil unless an external identity provider is
// enabled.
func ProvideExternalAuth(cfg *config.Config) (*extauth.Verifier, error) {
	if !cfg.Authentication.External.Enabled {
		return nil, nil
	}
	return extauth.FromCentralConfig(cfg.Authentication.External)
}

func ProvideInviteStore(cfg *config.Config, kv redispkg.KV) *invite.Store {
	return invite.NewStore(kv, time.Duration(cfg.Authentication.InviteTTLHours)*time.Hour)
}

func ProvideCredentialIssuer(cfg *config.Config, store *repo.Store, hasher *password.Hasher) *credential.Issuer {
	return credential.NewIssuer(store.Identities, hasher, cfg.SMS.Region)
}

func ProvideCredentialDeliverer(mail *email.Client, texter *sms.Client) *credential.Deliverer {
	return credential.NewDeliverer(mail, texter)
}

func ProvideAuthService(
	store *repo.Store,
	kv redispkg.KV,
	tokens *pasetotoken.Manager,
	hasher *password.Hasher,
	invites *invite.Store,
	ext *extauth.Verifier,
) (auth.Service, error) {
	return auth.New(store, kv, tokens, hasher, invites, ext)
}

func ProvideDiagnosticService(
	cfg *config.Config,
	store *repo.Store,
	blobs *s3pkg.Client,
	metrics *observability.Metrics,
) diagnostic.Service {
	return diagnostic.New(store, blobs, metrics, diagnostic.Options{
		MaxSize: int64(cfg.Diagnostics.MaxSizeMB) << 20,
		LinkTTL: time.Duration(cfg.S3.PresignTTLSec) * time.Second,
	})
}

func ProvidePatientService(
	cfg *config.Config,
	store *repo.Store,
	issuer *credential.Issuer,
	delivery *credential.Deliverer,
	invites *invite.Store,
	mail *email.Client,
	attachments diagnostic.Service,
	pub events.Publisher,
) patient.Service {
	return patient.New(patient.Deps{
		Store:       store,
		Issuer:      issuer,
		Delivery:    delivery,
		Invites:     invites,
		Mailer:      mail,
		Attachments: attachments,
		Events:      pub,
	}, patient.Options{
		RevealPassword: cfg.Authentication.RevealIssuedPassword,
		InviteURL:      cfg.Authentication.InviteURL,
	})
}

func ProvideAppointmentService(store *repo.Store, pub events.Publisher, metrics *observability.Metrics) appointment.Service {
	return appointment.New(store, pub, metrics)
}

func ProvideFeeService(
	cfg *config.Config,
	store *repo.Store,
	kv redispkg.KV,
	gw fee.Gateway,
	pub events.Publisher,
	metrics *observability.Metrics,
) fee.Service {
	return fee.New(fee.Deps{
		Store:   store,
		KV:      kv,
		Gateway: gw,
		Events:  pub,
		Metrics: metrics,
	}, fee.Options{CallbackURL: cfg.Payment.ZarinPal.CallbackURL})
}

func ProvideNotifier(store *repo.Store, texter *sms.Client) *notify.Notifier {
	return notify.New(store.Patients, texter)
}
