package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2idParams defines Argon2id hashing parameters for password hashing.
// These values must be chosen carefully to balance security and performance.
type Argon2idParams struct {
	MemoryKiB uint32
	Time      uint32
	Threads   uint8
	SaltLen   uint32
	KeyLen    uint32
}

// DefaultArgon2idParams returns the baseline hashing parameters.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		MemoryKiB: 64 * 1024,
		Time:      3,
		Threads:   2,
		SaltLen:   16,
		KeyLen:    32,
	}
}

const (
	minPasswordLen = 8
	maxPasswordLen = 256

	// Anti-DoS bounds applied when decoding untrusted PHC strings during Verify.
	maxVerifyMemoryKiB = 1 << 21 // 2 GiB
	maxVerifyTime      = 16
	maxVerifyThreads   = 64
)

var (
	// ErrPasswordTooShort is returned when a password is below the minimum length.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned when a password exceeds the maximum length.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrMalformedHash is returned for stored hashes that do not parse as PHC Argon2id.
	ErrMalformedHash = errors.New("malformed password hash")
)

// HashPassword returns a PHC-style Argon2id hash string.
func HashPassword(plain string, p Argon2idParams) (string, error) {
	if len(plain) < minPasswordLen {
		return "", ErrPasswordTooShort
	}
	if len(plain) > maxPasswordLen {
		return "", ErrPasswordTooLong
	}
	if p.MemoryKiB == 0 || p.Time == 0 || p.Threads == 0 || p.SaltLen == 0 || p.KeyLen == 0 {
		p = DefaultArgon2idParams()
	}

	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plain), salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.MemoryKiB, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks plain against a stored PHC Argon2id hash.
// It returns (false, nil) for a wrong password and an error only for
// malformed/hostile hashes.
func VerifyPassword(plain, encoded string) (bool, error) {
	p, salt, key, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(plain), salt, p.Time, p.MemoryKiB, p.Threads, uint32(len(key)))
	if subtle.ConstantTimeCompare(got, key) == 1 {
		return true, nil
	}
	return false, nil
}

func decodePHC(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Argon2idParams{}, nil, nil, ErrMalformedHash
	}

	var p Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Threads); err != nil {
		return Argon2idParams{}, nil, nil, ErrMalformedHash
	}
	// Bound the cost of verifying an attacker-supplied hash string.
	if p.MemoryKiB == 0 || p.MemoryKiB > maxVerifyMemoryKiB ||
		p.Time == 0 || p.Time > maxVerifyTime ||
		p.Threads == 0 || p.Threads > maxVerifyThreads {
		return Argon2idParams{}, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Argon2idParams{}, nil, nil, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Argon2idParams{}, nil, nil, ErrMalformedHash
	}

	return p, salt, key, nil
}
