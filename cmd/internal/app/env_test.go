package app

import (
	"testing"
	"time"
)

func TestEnvString(t *testing.T) {
	t.Setenv("PARLEY_TEST_STR", "  value  ")
	if got := EnvString("PARLEY_TEST_STR", "def"); got != "value" {
		t.Fatalf("EnvString = %q", got)
	}
	if got := EnvString("PARLEY_TEST_STR_MISSING", "def"); got != "def" {
		t.Fatalf("EnvString default = %q", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("PARLEY_TEST_BOOL", "true")
	if !EnvBool("PARLEY_TEST_BOOL", false) {
		t.Fatalf("EnvBool true not parsed")
	}
	t.Setenv("PARLEY_TEST_BOOL", "garbage")
	if !EnvBool("PARLEY_TEST_BOOL", true) {
		t.Fatalf("EnvBool should fall back to default on parse error")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("PARLEY_TEST_INT", "42")
	if got := EnvInt("PARLEY_TEST_INT", 7); got != 42 {
		t.Fatalf("EnvInt = %d", got)
	}
	t.Setenv("PARLEY_TEST_INT", "-3")
	if got := EnvInt("PARLEY_TEST_INT", 7); got != 7 {
		t.Fatalf("EnvInt should reject non-positive values, got %d", got)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("PARLEY_TEST_DUR", "90s")
	if got := EnvDuration("PARLEY_TEST_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration = %v", got)
	}
	t.Setenv("PARLEY_TEST_DUR", "not-a-duration")
	if got := EnvDuration("PARLEY_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("EnvDuration should fall back to default, got %v", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PARLEY_HTTP_ADDR", "")
	t.Setenv("PARLEY_DATABASE_URL", "")

	cfg := LoadConfig()
	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("default addr = %q", cfg.HTTPAddr)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("default database url should be empty")
	}
	if cfg.ReadHeaderTimeout <= 0 || cfg.IdleTimeout <= 0 {
		t.Fatalf("timeouts must default to positive values")
	}
}
