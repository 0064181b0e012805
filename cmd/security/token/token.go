// Package token provides the one-way hashing primitive for refresh tokens.
//
// Refresh tokens are opaque random strings handed to clients; the server only
// ever stores their digest. With PARLEY_TOKEN_HMAC_KEY set the digest is keyed
// (HMAC-SHA256), otherwise plain SHA-256 is used for dev setups.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// HMACEnvKey names the env var holding the token HMAC secret.
// #nosec G101 -- an env var name, not a credential.
const HMACEnvKey = "PARLEY_TOKEN_HMAC_KEY"

func hmacKey() string {
	return strings.TrimSpace(os.Getenv(HMACEnvKey))
}

// HashSHA256Hex returns the SHA-256 digest of s as lowercase hex.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns the HMAC-SHA256 digest of s under key as hex.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the configured key bytes, enforcing a minimum length.
// ErrHMACKeyMissing when unset or blank; ErrHMACKeyTooShort below minBytes.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := hmacKey()
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	if minBytes > 0 && len(raw) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return []byte(raw), nil
}

// HMACEnabled reports whether a key is present. Length policy is not checked
// here; HMACKeyFromEnv owns that.
func HMACEnabled() bool {
	return hmacKey() != ""
}

// HashRefreshTokenHex digests a refresh token for storage. Keyed HMAC when the
// env key is set, plain SHA-256 otherwise.
func HashRefreshTokenHex(token string) string {
	if key := hmacKey(); key != "" {
		return HashHMACSHA256Hex(token, []byte(key))
	}
	return HashSHA256Hex(token)
}
