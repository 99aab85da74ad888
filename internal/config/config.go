// Package config resolves process configuration from the environment.
//
// Options are addressed by well-known dotted keys (e.g. "api.auth_jwt_secret")
// which map onto environment variables with the SKEIN__ prefix, sections and
// options upper-cased and joined by double underscores
// (SKEIN__API__AUTH_JWT_SECRET). Values are read once at load time; request
// handling code never touches the environment directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "SKEIN__"

// Well-known option keys.
const (
	KeyAuthManager         = "api.auth_manager"
	KeyJWTSecret           = "api.auth_jwt_secret"
	KeyJWTExpiration       = "api.auth_jwt_expiration_time"
	KeySimpleAuthUsers     = "api.simple_auth_users"
	KeySimpleAuthAllAdmins = "api.simple_auth_all_admins"
	KeyAPIHost             = "api.host"
	KeyDatabaseDSN         = "database.dsn"
)

var defaults = map[string]string{
	KeyAuthManager:   "simple",
	KeyJWTExpiration: "86400",
	KeyAPIHost:       ":8080",
}

var knownKeys = []string{
	KeyAuthManager,
	KeyJWTSecret,
	KeyJWTExpiration,
	KeySimpleAuthUsers,
	KeySimpleAuthAllAdmins,
	KeyAPIHost,
	KeyDatabaseDSN,
}

// Config is an immutable snapshot of resolved options.
type Config struct {
	values map[string]string
}

// Load reads every known option from the environment, falling back to
// built-in defaults for options that are unset.
func Load() *Config {
	values := make(map[string]string, len(knownKeys))
	for _, key := range knownKeys {
		if v, ok := os.LookupEnv(EnvName(key)); ok {
			values[key] = strings.TrimSpace(v)
		}
	}
	return &Config{values: values}
}

// NewStatic builds a Config from explicit values. Intended for tests and for
// composing backends without touching the environment.
func NewStatic(values map[string]string) *Config {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = strings.TrimSpace(v)
	}
	return &Config{values: copied}
}

// EnvName returns the environment variable backing a dotted option key.
func EnvName(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}

// Get returns the resolved value for key, or the built-in default when unset.
func (c *Config) Get(key string) string {
	if c != nil {
		if v, ok := c.values[key]; ok && v != "" {
			return v
		}
	}
	return defaults[key]
}

// GetInt parses the value for key as a base-10 integer.
func (c *Config) GetInt(key string) (int, error) {
	raw := c.Get(key)
	if raw == "" {
		return 0, fmt.Errorf("config: %s is not set", key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

// GetBool reports whether the value for key is truthy ("1", "true", "yes").
func (c *Config) GetBool(key string) bool {
	switch strings.ToLower(c.Get(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// TokenTTL returns the configured JWT lifetime.
func (c *Config) TokenTTL() (time.Duration, error) {
	seconds, err := c.GetInt(KeyJWTExpiration)
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("config: %s must be greater than zero", KeyJWTExpiration)
	}
	return time.Duration(seconds) * time.Second, nil
}

// Validate checks the options a serving process cannot start without.
// A missing signing secret is fatal here rather than at request time.
func (c *Config) Validate() error {
	var errs []error
	if c.Get(KeyJWTSecret) == "" {
		errs = append(errs, fmt.Errorf("config: %s is required (set %s)", KeyJWTSecret, EnvName(KeyJWTSecret)))
	}
	if _, err := c.TokenTTL(); err != nil {
		errs = append(errs, err)
	}
	if c.Get(KeyAuthManager) == "" {
		errs = append(errs, fmt.Errorf("config: %s is required", KeyAuthManager))
	}
	return errors.Join(errs...)
}
