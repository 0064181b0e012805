package session

import (
	"crypto/rand"
	"encoding/base64"

	"parley/cmd/security/token"
)

// newOpaqueRefreshToken mints a fresh refresh token. The plain value goes to
// the client; only hashHex is ever persisted.
func newOpaqueRefreshToken(nBytes int) (plain string, hashHex string, err error) {
	b := make([]byte, nBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}
	plain = base64.RawURLEncoding.EncodeToString(b)
	return plain, token.HashRefreshTokenHex(plain), nil
}

func hashRefreshTokenHex(s string) string {
	return token.HashRefreshTokenHex(s)
}
