package session

import "errors"

var (
	// ErrInvalidToken is returned when an access token fails verification.
	// Expired, malformed, and forged tokens are deliberately indistinguishable.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotFound is returned when a refresh token does not match any record.
	ErrNotFound = errors.New("refresh token not found")

	// ErrExpired is returned when the matching refresh record is past its expiry.
	ErrExpired = errors.New("refresh token expired")

	// ErrDeviceMismatch is returned when a refresh token is presented with a
	// device fingerprint that differs from the one captured at issuance.
	// The record is deleted as a side effect; this is a security control.
	ErrDeviceMismatch = errors.New("refresh token device mismatch")

	// ErrConflict is returned when a freshly generated token hash collides with
	// an existing record. Transient: safe to retry with a new token.
	ErrConflict = errors.New("refresh token hash conflict")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
