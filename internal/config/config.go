// Package config loads the process's environment-variable configuration,
// per spec §6.3.
package config

import (
	"fmt"
	"net/url"
	"os"
)

// Config holds the process-wide settings read once at startup.
type Config struct {
	Port      string
	RedisAddr string
	LogLevel  string
	LogFormat string
}

// Load reads Config from the environment, applying the spec's defaults.
func Load() Config {
	return Config{
		Port:      getenv("PORT", "8080"),
		RedisAddr: getenv("REDIS_ADDR", "redis://127.0.0.1:6379"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "console"),
	}
}

// Validate checks that RedisAddr parses as a redis:// URL, per spec §6.3
// ("process exits non-zero if ... the broker URL is invalid").
func (c Config) Validate() error {
	u, err := url.Parse(c.RedisAddr)
	if err != nil {
		return fmt.Errorf("config: invalid REDIS_ADDR %q: %w", c.RedisAddr, err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return fmt.Errorf("config: REDIS_ADDR %q must use the redis:// or rediss:// scheme", c.RedisAddr)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
