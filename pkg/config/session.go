package config

import "time"

// SessionConfig contains cookie session settings
type SessionConfig struct {
	CookieName  string `env:"SESSION_COOKIE_NAME" env-default:"session_id"`
	IdleTimeout string `env:"SESSION_IDLE_TIMEOUT" env-default:"30m"`
}

// ParseIdleTimeout parses the sliding idle timeout duration
func (s SessionConfig) ParseIdleTimeout() (time.Duration, error) {
	return ParseDuration(s.IdleTimeout)
}
