// Package session implements Parley's token lifecycle.
//
// It issues short-lived JWT access tokens, issues and rotates long-lived
// device-bound refresh tokens, and revokes them on logout or on detected
// device mismatch.
//
// Access tokens carry a fixed claims shape {sub, type, exp} and are never
// persisted server-side. Refresh tokens are opaque random strings stored only
// as a one-way hash (HMAC-SHA256 when PARLEY_TOKEN_HMAC_KEY is set, SHA-256
// otherwise). A refresh-token record is single use: it is deleted the moment
// it is rotated, revoked, found expired, or presented from the wrong device.
package session
