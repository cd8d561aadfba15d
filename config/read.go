package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Alijeyrad/clinic_backend/pkg/constants"
)

func ReadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(constants.ConfigName)
	v.SetConfigType(constants.ConfigFormat)
	v.AddConfigPath(configPath)

	// Allow env vars to override config values.
	// e.g. CLINIC_DATABASE_HOST overrides database.host
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// The config file is optional; a container can be configured from env alone.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults registers every key viper should know about. AutomaticEnv only
// resolves keys that already exist, so secrets that are usually supplied from
// the environment get an empty default here.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool.max_conns", 10)
	v.SetDefault("database.pool.min_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_minutes", 30)
	v.SetDefault("database.migrations.auto_migrate", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.environment", constants.EnvironmentDevelopment)
	v.SetDefault("server.body_limit_mb", 12)
	v.SetDefault("server.rate_limit.requests_per_minute", 30)

	v.SetDefault("authentication.paseto.mode", "local")
	v.SetDefault("authentication.paseto.local_key_hex", "")
	v.SetDefault("authentication.paseto.secret_key_hex", "")
	v.SetDefault("authentication.paseto.public_key_hex", "")
	v.SetDefault("authentication.paseto.issuer", constants.AppName)
	v.SetDefault("authentication.paseto.audience", constants.AppName)
	v.SetDefault("authentication.paseto.access_ttl_minutes", 15)
	v.SetDefault("authentication.paseto.refresh_ttl_days", 7)
	v.SetDefault("authentication.session_ttl_minutes", 60*24*7)
	v.SetDefault("authentication.invite_ttl_hours", 72)
	v.SetDefault("authentication.encryption_key", "")
	v.SetDefault("authentication.external.enabled", false)
	v.SetDefault("authentication.external.secret", "")

	v.SetDefault("password.algorithm", "bcrypt")
	v.SetDefault("password.bcrypt_cost", 12)

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.presign_ttl_sec", 3600)
	v.SetDefault("s3.server_side_encryption", true)

	v.SetDefault("diagnostics.max_size_mb", 10)

	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("sms.smsir.api_key", "")
	v.SetDefault("payment.zarinpal.merchant_id", "")
	v.SetDefault("nats.url", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output.stdout", true)
}
