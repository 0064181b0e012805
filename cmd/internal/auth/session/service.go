package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"parley/cmd/identity"
)

// createRetries bounds Conflict retries when a freshly generated token hash
// collides with an existing record. Should never trigger with 32 random bytes,
// but the constraint must be handled, not ignored.
const createRetries = 3

// UserLookup resolves the user behind a refresh record during rotation.
// identity.Store satisfies it.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (identity.User, error)
}

// Issued is the result of issuing or rotating a session: a short-lived access
// token plus an opaque refresh token.
type Issued struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// Service implements the token lifecycle: it issues and validates access
// tokens, and issues, rotates, and revokes refresh tokens via Store.
type Service struct {
	cfg    Config
	tokens AccessTokenManager
	store  Store
	users  UserLookup
}

// NewService constructs a Service with the provided configuration, store,
// token manager, and user directory.
func NewService(cfg Config, store Store, tokens AccessTokenManager, users UserLookup) *Service {
	return &Service{cfg: cfg, store: store, tokens: tokens, users: users}
}

// IssueAccessToken signs a short-lived access token for subjectEmail.
// No side effects beyond signing.
func (s *Service) IssueAccessToken(subjectEmail string, now time.Time) (string, time.Time, error) {
	return s.tokens.Issue(subjectEmail, now)
}

// VerifyAccessToken verifies an access token. Every failure mode collapses to
// ErrInvalidToken.
func (s *Service) VerifyAccessToken(token string, now time.Time) (AccessClaims, error) {
	return s.tokens.Verify(token, now)
}

// IssueSession creates a refresh record for the user and returns a fresh
// access/refresh pair. Only the hash of the refresh token is persisted.
func (s *Service) IssueSession(ctx context.Context, now time.Time, userID, email string, dev Device) (Issued, error) {
	refreshPlain, refreshExp, err := s.createRecord(ctx, now, userID, dev)
	if err != nil {
		return Issued{}, err
	}

	accessToken, accessExp, err := s.tokens.Issue(email, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshPlain,
		RefreshExp:   refreshExp,
	}, nil
}

// Rotate exchanges a refresh token for a new access/refresh pair.
//
// Security model:
//   - Unknown hash -> ErrNotFound, no mutation.
//   - Expired record -> record deleted (expiry detection), ErrExpired.
//   - Fingerprint mismatch -> record deleted (treated as compromised),
//     ErrDeviceMismatch.
//   - Success: the old record is deleted and the new one inserted in a single
//     atomic store operation. Under concurrent rotations of the same raw token
//     exactly one caller succeeds; the rest observe ErrNotFound.
func (s *Service) Rotate(ctx context.Context, now time.Time, refreshTokenPlain string, dev Device) (Issued, error) {
	refreshTokenPlain = strings.TrimSpace(refreshTokenPlain)
	// Basic sanity bounds to avoid pathological inputs.
	if refreshTokenPlain == "" || len(refreshTokenPlain) > 4096 {
		return Issued{}, ErrNotFound
	}

	oldHash := hashRefreshTokenHex(refreshTokenPlain)

	rec, err := s.store.FindByHash(ctx, oldHash)
	if err != nil {
		return Issued{}, err
	}

	if !rec.ExpiresAt.After(now) {
		_, _ = s.store.DeleteByHash(ctx, oldHash)
		return Issued{}, ErrExpired
	}

	if rec.Device != dev {
		if _, err := s.store.DeleteByHash(ctx, oldHash); err != nil {
			return Issued{}, err
		}
		return Issued{}, ErrDeviceMismatch
	}

	user, err := s.users.GetUserByID(ctx, rec.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			// Orphaned record: the user is gone, the token must die with it.
			_, _ = s.store.DeleteByHash(ctx, oldHash)
			return Issued{}, ErrNotFound
		}
		return Issued{}, err
	}

	refreshExp := now.Add(s.cfg.RefreshTokenTTL)

	var refreshPlain string
	for attempt := 0; ; attempt++ {
		plain, hash, err := newOpaqueRefreshToken(s.cfg.RefreshTokenBytes)
		if err != nil {
			return Issued{}, err
		}

		err = s.store.Rotate(ctx, oldHash, Record{
			ID:        ulid.Make().String(),
			TokenHash: hash,
			UserID:    rec.UserID,
			ExpiresAt: refreshExp,
			Device:    dev,
			CreatedAt: now,
		})
		if errors.Is(err, ErrConflict) && attempt < createRetries {
			continue
		}
		if err != nil {
			return Issued{}, err
		}
		refreshPlain = plain
		break
	}

	accessToken, accessExp, err := s.tokens.Issue(user.Email, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshPlain,
		RefreshExp:   refreshExp,
	}, nil
}

// Revoke deletes the record matching the raw refresh token if present.
// Idempotent: absence is not an error.
func (s *Service) Revoke(ctx context.Context, refreshTokenPlain string) error {
	refreshTokenPlain = strings.TrimSpace(refreshTokenPlain)
	if refreshTokenPlain == "" {
		return nil
	}
	_, err := s.store.DeleteByHash(ctx, hashRefreshTokenHex(refreshTokenPlain))
	return err
}

// RevokeAllForUser deletes every refresh record for a user (logout everywhere).
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.store.DeleteAllForUser(ctx, userID)
}

func (s *Service) createRecord(ctx context.Context, now time.Time, userID string, dev Device) (plain string, exp time.Time, err error) {
	exp = now.Add(s.cfg.RefreshTokenTTL)

	for attempt := 0; ; attempt++ {
		p, hash, err := newOpaqueRefreshToken(s.cfg.RefreshTokenBytes)
		if err != nil {
			return "", time.Time{}, err
		}

		err = s.store.Create(ctx, Record{
			ID:        ulid.Make().String(),
			TokenHash: hash,
			UserID:    userID,
			ExpiresAt: exp,
			Device:    dev,
			CreatedAt: now,
		})
		if errors.Is(err, ErrConflict) && attempt < createRetries {
			continue
		}
		if err != nil {
			return "", time.Time{}, err
		}
		return p, exp, nil
	}
}
