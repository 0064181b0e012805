package session

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_RequiresSecret(t *testing.T) {
	t.Setenv("PARLEY_JWT_SECRET", "")

	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig without secret, got %v", err)
	}

	t.Setenv("PARLEY_JWT_SECRET", "too-short")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for weak secret, got %v", err)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("PARLEY_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PARLEY_AUTH_ACCESS_TTL", "15m")
	t.Setenv("PARLEY_AUTH_REFRESH_TTL", "48h")
	t.Setenv("PARLEY_AUTH_REFRESH_TOKEN_BYTES", "48")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("access ttl: %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 48*time.Hour {
		t.Fatalf("refresh ttl: %v", cfg.RefreshTokenTTL)
	}
	if cfg.RefreshTokenBytes != 48 {
		t.Fatalf("refresh bytes: %d", cfg.RefreshTokenBytes)
	}
}

func TestLoadConfigFromEnv_RejectsInvertedTTLs(t *testing.T) {
	t.Setenv("PARLEY_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PARLEY_AUTH_ACCESS_TTL", "48h")
	t.Setenv("PARLEY_AUTH_REFRESH_TTL", "1h")

	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig when access TTL >= refresh TTL, got %v", err)
	}
}
