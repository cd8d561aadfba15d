package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Validate reports every missing or malformed required setting at once.
func (c *Config) Validate() error {
	var errs []error
	require := func(val, key string) {
		if strings.TrimSpace(val) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	require(c.Database.Host, "database.host")
	require(c.Database.User, "database.user")
	require(c.Database.DBName, "database.dbname")
	require(c.Redis.Addr, "redis.addr")

	switch c.Authentication.Paseto.Mode {
	case "", "local":
		if err := hexKey(c.Authentication.Paseto.LocalKeyHex, 32); err != nil {
			errs = append(errs, fmt.Errorf("authentication.paseto.local_key_hex: %w", err))
		}
	case "public":
		require(c.Authentication.Paseto.SecretKeyHex, "authentication.paseto.secret_key_hex")
	default:
		errs = append(errs, fmt.Errorf("authentication.paseto.mode: unknown mode %q", c.Authentication.Paseto.Mode))
	}

	if err := hexKey(c.Authentication.EncryptionKey, 32); err != nil {
		errs = append(errs, fmt.Errorf("authentication.encryption_key: %w", err))
	}
	if c.Authentication.External.Enabled {
		require(c.Authentication.External.Secret, "authentication.external.secret")
	}

	switch c.Password.Algorithm {
	case "", "bcrypt", "argon2id":
	default:
		errs = append(errs, fmt.Errorf("password.algorithm: unknown algorithm %q", c.Password.Algorithm))
	}

	require(c.S3.Bucket, "s3.bucket")
	require(c.S3.AccessKeyID, "s3.access_key_id")
	require(c.S3.SecretAccessKey, "s3.secret_access_key")

	if c.Email.Enabled {
		require(c.Email.SMTP.Host, "email.smtp.host")
		require(c.Email.From, "email.from")
	}
	if c.SMS.Enabled {
		require(c.SMS.SMSIR.APIKey, "sms.smsir.api_key")
	}
	if c.Payment.Enabled {
		require(c.Payment.ZarinPal.MerchantID, "payment.zarinpal.merchant_id")
		require(c.Payment.ZarinPal.CallbackURL, "payment.zarinpal.callback_url")
	}

	return errors.Join(errs...)
}

func hexKey(s string, size int) error {
	if s == "" {
		return errors.New("required")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("must be hex: %w", err)
	}
	if len(b) != size {
		return fmt.Errorf("must decode to %d bytes, got %d", size, len(b))
	}
	return nil
}
