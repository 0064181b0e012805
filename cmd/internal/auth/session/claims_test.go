package session

import (
	"strings"
	"testing"
	"time"
)

func testTokenConfig() Config {
	cfg := DefaultConfig()
	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	return cfg
}

func TestJWTManager_IssueAndVerify(t *testing.T) {
	t.Parallel()

	mgr, err := NewJWTManager(testTokenConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	now := time.Now().UTC()
	tok, exp, err := mgr.Issue("alice@example.com", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.After(now) {
		t.Fatalf("expected exp after now")
	}

	claims, err := mgr.Verify(tok, now.Add(1*time.Second))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "alice@example.com" {
		t.Fatalf("sub mismatch: %q", claims.Subject)
	}
	if !claims.ExpiresAt.Equal(exp.Truncate(time.Second)) {
		t.Fatalf("exp mismatch: %v vs %v", claims.ExpiresAt, exp)
	}
}

func TestJWTManager_ExpiredCollapsesToInvalid(t *testing.T) {
	t.Parallel()

	cfg := testTokenConfig()
	cfg.AccessTokenTTL = time.Minute
	mgr, err := NewJWTManager(cfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	now := time.Now().UTC()
	tok, _, err := mgr.Issue("alice@example.com", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := mgr.Verify(tok, now.Add(2*time.Minute)); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestJWTManager_RejectsGarbageAndWrongKey(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	mgr, err := NewJWTManager(testTokenConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	otherCfg := testTokenConfig()
	otherCfg.JWTSecret = strings.Repeat("x", 32)
	other, err := NewJWTManager(otherCfg)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	forged, _, err := other.Issue("alice@example.com", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for _, tok := range []string{"", "garbage", "a.b.c", forged} {
		if _, err := mgr.Verify(tok, now); err != ErrInvalidToken {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}
