package database

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Alijeyrad/clinic_backend/config"
)

// Config holds database connection and pool settings
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns           int32
	MinConns           int32
	ConnMaxLifetimeMin int

	AutoMigrate bool
}

// DSN returns a PostgreSQL connection URL
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ConnMaxLifetime returns the connection max lifetime as a duration
func (c Config) ConnMaxLifetime() time.Duration {
	if c.ConnMaxLifetimeMin <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.ConnMaxLifetimeMin) * time.Minute
}

// DefaultConfig returns sensible defaults for database configuration
func DefaultConfig() Config {
	return Config{
		Host:               "localhost",
		Port:               5432,
		SSLMode:            "disable",
		MaxConns:           10,
		MinConns:           1,
		ConnMaxLifetimeMin: 30,
	}
}

// FromCentralConfig converts central config.DatabaseConfig to package Config
func FromCentralConfig(c config.DatabaseConfig) Config {
	d := DefaultConfig()
	d.Host = c.Host
	if c.Port != 0 {
		d.Port = c.Port
	}
	d.User = c.User
	d.Password = c.Password
	d.DBName = c.DBName
	if c.SSLMode != "" {
		d.SSLMode = c.SSLMode
	}
	if c.Pool.MaxConns > 0 {
		d.MaxConns = c.Pool.MaxConns
	}
	if c.Pool.MinConns > 0 {
		d.MinConns = c.Pool.MinConns
	}
	if c.Pool.ConnMaxLifetimeMin > 0 {
		d.ConnMaxLifetimeMin = c.Pool.ConnMaxLifetimeMin
	}
	d.AutoMigrate = c.Migrations.AutoMigrate
	return d
}
