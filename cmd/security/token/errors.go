package token

import "errors"

// Sentinel errors for HMAC key policy checks.
var (
	ErrHMACKeyMissing  = errors.New("refresh token HMAC key not set")
	ErrHMACKeyTooShort = errors.New("refresh token HMAC key below minimum length")
)
