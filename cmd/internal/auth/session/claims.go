package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const accessTokenType = "access"

// AccessClaims is the identity envelope carried by a verified access token.
type AccessClaims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// AccessTokenManager issues and verifies short-lived access tokens.
type AccessTokenManager interface {
	Issue(subject string, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (AccessClaims, error)
}

// accessTokenClaims is the fixed wire shape of access-token claims.
// Both encode and decode go through this struct so a forged or drifted claim
// set never round-trips.
type accessTokenClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

type jwtHS256Manager struct {
	ttl    time.Duration
	secret []byte
}

// NewJWTManager builds an AccessTokenManager signing HS256 JWTs with the
// configured secret.
func NewJWTManager(cfg Config) (AccessTokenManager, error) {
	if len(cfg.JWTSecret) < 32 || cfg.AccessTokenTTL <= 0 {
		return nil, ErrConfig
	}
	return &jwtHS256Manager{
		ttl:    cfg.AccessTokenTTL,
		secret: []byte(cfg.JWTSecret),
	}, nil
}

func (m *jwtHS256Manager) Issue(subject string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.ttl)

	claims := accessTokenClaims{
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *jwtHS256Manager) Verify(token string, now time.Time) (AccessClaims, error) {
	var claims accessTokenClaims

	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return AccessClaims{}, ErrInvalidToken
	}

	if claims.TokenType != accessTokenType || claims.Subject == "" {
		return AccessClaims{}, ErrInvalidToken
	}

	out := AccessClaims{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
