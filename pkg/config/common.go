package config

import (
	"time"

	"github.com/sosodev/duration"
)

// ParseDuration tries ISO-8601 first (PT30M), then the Go form (30m)
func ParseDuration(s string) (time.Duration, error) {
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}
	return time.ParseDuration(s)
}
