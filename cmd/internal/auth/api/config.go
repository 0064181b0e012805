package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// Failed-or-not, every login attempt from a client address counts
	// against this window.
	LoginMax    int
	LoginWindow time.Duration

	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	// Redirect targets for the form endpoints.
	PostLoginRedirect  string
	PostLogoutRedirect string
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:         envBool("PARLEY_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:       envInt64("PARLEY_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		LoginMax:           envInt("PARLEY_AUTH_LOGIN_MAX", 5),
		LoginWindow:        envDuration("PARLEY_AUTH_LOGIN_WINDOW", time.Minute),
		CookiePath:         envString("PARLEY_AUTH_COOKIE_PATH", "/"),
		CookieDomain:       envString("PARLEY_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:       envBool("PARLEY_AUTH_COOKIE_SECURE", true),
		CookieSameSite:     http.SameSiteLaxMode,
		PostLoginRedirect:  envString("PARLEY_AUTH_POST_LOGIN_REDIRECT", "/chats"),
		PostLogoutRedirect: envString("PARLEY_AUTH_POST_LOGOUT_REDIRECT", "/login"),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.LoginMax <= 0 {
		cfg.LoginMax = 5
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = time.Minute
	}

	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
