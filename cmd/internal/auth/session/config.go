package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines runtime configuration for the token lifecycle.
//
// It is intentionally explicit and environment-driven so that production
// deployments can tune security parameters without code changes.
type Config struct {
	// AccessTokenTTL defines the lifetime of JWT access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL defines the lifetime of refresh-token records.
	RefreshTokenTTL time.Duration

	// RefreshTokenBytes defines the number of random bytes used to generate
	// opaque refresh tokens.
	RefreshTokenBytes int

	// JWTSecret is the HS256 signing key for access tokens.
	JWTSecret string
}

// DefaultConfig returns defaults suitable for development.
// Production environments must set PARLEY_JWT_SECRET.
func DefaultConfig() Config {
	return Config{
		AccessTokenTTL:    30 * time.Minute,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		RefreshTokenBytes: 32,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - PARLEY_JWT_SECRET (min 32 bytes)
//
// Optional (durations must be valid Go duration strings):
//   - PARLEY_AUTH_ACCESS_TTL
//   - PARLEY_AUTH_REFRESH_TTL
//   - PARLEY_AUTH_REFRESH_TOKEN_BYTES
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("PARLEY_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("PARLEY_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenTTL = d
	}

	if v := os.Getenv("PARLEY_AUTH_REFRESH_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenBytes = n
	}

	cfg.JWTSecret = os.Getenv("PARLEY_JWT_SECRET")
	if len(cfg.JWTSecret) < 32 {
		return Config{}, ErrConfig
	}

	// Access tokens must be strictly shorter lived than refresh tokens.
	if cfg.AccessTokenTTL >= cfg.RefreshTokenTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
