// Package email sends patient notifications (issued credentials and
// registration invites) over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/Alijeyrad/clinic_backend/config"
)

const defaultTimeout = 30 * time.Second

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Client struct {
	cfg     config.EmailConfig
	timeout time.Duration
	dial    dialer
}

// New returns a client. A disabled client is valid and rejects every send
// with ErrDisabled.
func New(cfg config.EmailConfig) (*Client, error) {
	if cfg.AppName == "" {
		cfg.AppName = "Clinic"
	}
	c := &Client{cfg: cfg, timeout: defaultTimeout}
	if cfg.SMTP.TimeoutSeconds > 0 {
		c.timeout = time.Duration(cfg.SMTP.TimeoutSeconds) * time.Second
	}
	if !cfg.Enabled {
		return c, nil
	}
	if strings.TrimSpace(cfg.SMTP.Host) == "" {
		return nil, errors.New("email: smtp.host is required when email is enabled")
	}
	c.dial = newDialer(cfg.SMTP)
	return c, nil
}

// Port 465 is implicit TLS; other ports upgrade with STARTTLS.
func newDialer(s config.SMTPConfig) *gomail.Dialer {
	d := gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	d.SSL = s.UseTLS && s.Port == 465
	d.TLSConfig = &tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12}
	return d
}

func (c *Client) Enabled() bool { return c.cfg.Enabled && c.dial != nil }

// Branding returns the app name and base URL used by the templates.
func (c *Client) Branding() (appName, baseURL string) {
	return c.cfg.AppName, c.cfg.BaseURL
}

// Send delivers m, giving up at the sooner of ctx's deadline and the SMTP
// timeout. An abandoned dial finishes in the background.
func (c *Client) Send(ctx context.Context, m Message) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	msg, err := BuildMessage(c.cfg.From, m)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.dial.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return ErrSend{Err: err}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
