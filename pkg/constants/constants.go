package constants

const (
	AppName = "clinic"

	ConfigName   = "config"
	ConfigFormat = "yaml"

	// EnvPrefix is prepended to every environment override, e.g. CLINIC_DATABASE_HOST.
	EnvPrefix = "CLINIC"

	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)
