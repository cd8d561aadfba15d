package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arsmn/go-smsir/smsir"
	"github.com/nyaruka/phonenumbers"

	"github.com/Alijeyrad/clinic_backend/config"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// Client sends template messages through sms.ir.
type Client struct {
	client  *smsir.Client
	enabled bool
	region  string

	credentialTemplate  string
	appointmentTemplate string
}

// NewFromConfig returns a no-op client when SMS is disabled.
func NewFromConfig(cfg config.SMSConfig) (*Client, error) {
	region := strings.ToUpper(strings.TrimSpace(cfg.Region))
	if region == "" {
		region = "IR"
	}
	if !cfg.Enabled {
		return &Client{enabled: false, region: region}, nil
	}

	if cfg.SMSIR.APIKey == "" {
		return nil, fmt.Errorf("sms.ir API key required when SMS enabled")
	}

	return &Client{
		client:              smsir.NewClient().WithAuthentication(cfg.SMSIR.APIKey, cfg.SMSIR.SecretKey),
		enabled:             true,
		region:              region,
		credentialTemplate:  cfg.SMSIR.CredentialTemplateID,
		appointmentTemplate: cfg.SMSIR.AppointmentTemplateID,
	}, nil
}

func (c *Client) IsEnabled() bool {
	return c.enabled
}

// NormalizePhone parses raw in the client's default region and returns it in
// E.164 form.
func (c *Client) NormalizePhone(raw string) (string, error) {
	return NormalizePhone(raw, c.region)
}

func NormalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// SendCredential texts a newly issued login and password. The template must
// declare "login" and "password" parameters.
func (c *Client) SendCredential(ctx context.Context, phone, login, password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	return c.send(ctx, phone, c.credentialTemplate, []smsir.UltraFastParameter{
		{Key: "login", Value: login},
		{Key: "password", Value: password},
	})
}

// SendAppointmentNotice texts an appointment change. The template must declare
// "date", "time" and "status" parameters.
func (c *Client) SendAppointmentNotice(ctx context.Context, phone, date, clock, status string) error {
	return c.send(ctx, phone, c.appointmentTemplate, []smsir.UltraFastParameter{
		{Key: "date", Value: date},
		{Key: "time", Value: clock},
		{Key: "status", Value: status},
	})
}

func (c *Client) send(ctx context.Context, phone, templateID string, params []smsir.UltraFastParameter) error {
	if !c.enabled {
		return nil
	}
	if templateID == "" {
		return fmt.Errorf("template ID is required")
	}

	mobile, err := c.NormalizePhone(phone)
	if err != nil {
		return err
	}

	_, err = c.client.Verification.UltraFastSend(ctx, &smsir.UltraFastSendRequest{
		Mobile:     mobile,
		TemplateID: templateID,
		Parameters: params,
	})
	if err != nil {
		return fmt.Errorf("sms.ir send failed: %w", err)
	}
	return nil
}
