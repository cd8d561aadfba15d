package credential

import (
	"context"
	"log/slog"

	"github.com/Alijeyrad/clinic_backend/pkg/email"
)

// Channel names reported back to the doctor.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type Mailer interface {
	Enabled() bool
	Branding() (appName, baseURL string)
	Send(ctx context.Context, m email.Message) error
}

type Texter interface {
	IsEnabled() bool
	SendCredential(ctx context.Context, phone, login, password string) error
}

// Recipient is where an issued credential goes.
type Recipient struct {
	Name  string
	Email string
	Phone string
}

// Deliverer sends issued credentials by email and SMS. Either transport may
// be nil or disabled.
type Deliverer struct {
	mail Mailer
	sms  Texter
}

func NewDeliverer(mail Mailer, sms Texter) *Deliverer {
	return &Deliverer{mail: mail, sms: sms}
}

// Deliver tries every enabled channel and returns the ones that succeeded.
// Failures are logged; the caller decides whether to reveal the password.
func (d *Deliverer) Deliver(ctx context.Context, to Recipient, login, plain string) []string {
	var channels []string

	if d.mail != nil && d.mail.Enabled() && to.Email != "" && !IsSyntheticEmail(to.Email) {
		appName, baseURL := d.mail.Branding()
		msg := email.BuildCredentialEmail(email.CredentialEmailData{
			Name:     to.Name,
			Email:    to.Email,
			Login:    login,
			Password: plain,
			AppName:  appName,
			BaseURL:  baseURL,
		})
		if err := d.mail.Send(ctx, msg); err != nil {
			slog.WarnContext(ctx, "credential: email delivery failed", "err", err)
		} else {
			channels = append(channels, ChannelEmail)
		}
	}

	if d.sms != nil && d.sms.IsEnabled() && to.Phone != "" {
		if err := d.sms.SendCredential(ctx, to.Phone, login, plain); err != nil {
			slog.WarnContext(ctx, "credential: sms delivery failed", "err", err)
		} else {
			channels = append(channels, ChannelSMS)
		}
	}

	return channels
}
