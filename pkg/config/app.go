package config

// AppConfig holds server and application-level configuration
type AppConfig struct {
	Host string `env:"HOST" env-default:"0.0.0.0"`
	Port uint16 `env:"PORT" env-default:"4000"`

	// BaseURL is the public URL used when building password reset links
	BaseURL string `env:"BASE_URL" env-default:"http://localhost:4000"`

	// Debug gates error detail in HTTP responses. Stack traces are only
	// returned to the client when this is set explicitly; it is never
	// inferred from the deployment environment.
	Debug bool `env:"APP_DEBUG" env-default:"false"`
}
