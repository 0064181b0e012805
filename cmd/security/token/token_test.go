package token

import (
	"strings"
	"testing"
)

func TestHashSHA256Hex_StableAndHexShaped(t *testing.T) {
	a := HashSHA256Hex("refresh-token-value")
	b := HashSHA256Hex("refresh-token-value")

	if a != b {
		t.Fatalf("digest not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a == "refresh-token-value" || strings.Contains(a, "refresh") {
		t.Fatalf("digest leaks input: %q", a)
	}
}

func TestHashRefreshTokenHex_HMACModeDiffersFromPlain(t *testing.T) {
	plain := HashSHA256Hex("tok")

	t.Setenv(HMACEnvKey, "0123456789abcdef0123456789abcdef")
	keyed := HashRefreshTokenHex("tok")

	if keyed == plain {
		t.Fatalf("HMAC digest must differ from plain SHA-256")
	}
	if !HMACEnabled() {
		t.Fatalf("expected HMAC mode to be reported enabled")
	}
}

func TestHMACKeyFromEnv_Policy(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	if _, err := HMACKeyFromEnv(32); err != ErrHMACKeyMissing {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := HMACKeyFromEnv(32); err != ErrHMACKeyTooShort {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}

	t.Setenv(HMACEnvKey, strings.Repeat("k", 32))
	key, err := HMACKeyFromEnv(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("expected 32 key bytes, got %d", len(key))
	}
}
