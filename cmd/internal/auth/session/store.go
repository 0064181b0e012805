package session

import (
	"context"
	"time"
)

// Device is the fingerprint captured at refresh-token issuance and re-checked
// at rotation time.
type Device struct {
	UserAgent string
	IP        string
}

// Record is one live, unexpired, unused refresh token.
// TokenHash is unique across all records; the raw token is never stored.
type Record struct {
	ID        string
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	Device    Device
	CreatedAt time.Time
}

// Store abstracts persistence for refresh-token records. Pure storage, no
// policy: expiry and fingerprint checks live in Service.
//
// Error contract:
//   - Create returns ErrConflict when TokenHash already exists.
//   - FindByHash returns ErrNotFound for a missing hash.
//   - DeleteByHash reports whether a record was deleted and never errors on
//     absence.
//   - Rotate atomically deletes the record with oldHash and inserts repl; it
//     returns ErrNotFound when oldHash is already gone (lost race) and
//     ErrConflict when repl.TokenHash collides. Under concurrent rotations of
//     the same hash exactly one caller succeeds.
type Store interface {
	Create(ctx context.Context, rec Record) error
	FindByHash(ctx context.Context, tokenHash string) (Record, error)
	DeleteByHash(ctx context.Context, tokenHash string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID string) error
	Rotate(ctx context.Context, oldHash string, repl Record) error
}
