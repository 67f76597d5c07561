package config

import (
	"net/http"
	"time"
)

// JWTConfig holds bearer token and auth cookie configuration
type JWTConfig struct {
	Secret            string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer            string `env:"JWT_ISSUER" env-default:"simple-account"`
	Audience          string `env:"JWT_AUDIENCE" env-default:"simple-account"`
	AccessTokenExpiry string `env:"ACCESS_TOKEN_EXPIRY" env-default:"1h"`
	CookieHttpOnly    bool   `env:"COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure      bool   `env:"COOKIE_SECURE" env-default:"true"`
}

// ParseAccessTokenExpiry parses the access token expiry duration
func (j JWTConfig) ParseAccessTokenExpiry() (time.Duration, error) {
	return ParseDuration(j.AccessTokenExpiry)
}

// CookieSameSite returns the SameSite policy for the session cookie.
// Strict when the cookie is marked secure, Lax otherwise so local
// development over plain HTTP still works.
func (j JWTConfig) CookieSameSite() http.SameSite {
	if j.CookieSecure {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}
