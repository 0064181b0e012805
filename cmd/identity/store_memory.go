package identity

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-memory Store used by tests and DB-less dev mode.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]User
	byEmail map[string]string // normalized email -> user id
}

// NewMemoryStore constructs an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}
}

// CreateUser registers a user, hashing the password before storage.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	email := NormalizeEmail(in.Email)
	if email == "" {
		return User{}, OpError{Op: "identity.CreateUser", Kind: ErrInvalidInput, Msg: "empty email"}
	}

	hash, err := HashPassword(in.Password, DefaultArgon2idParams())
	if err != nil {
		return User{}, OpError{Op: "identity.CreateUser", Kind: ErrInvalidInput, Msg: err.Error()}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[email]; taken {
		return User{}, OpError{Op: "identity.CreateUser", Kind: ErrConflict, Msg: "email"}
	}

	u := User{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	return u, nil
}

// GetUserByEmail looks a user up by normalized email.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return User{}, OpError{Op: "identity.GetUserByEmail", Kind: ErrNotFound}
	}
	return s.byID[id], nil
}

// GetUserByID looks a user up by id.
func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, OpError{Op: "identity.GetUserByID", Kind: ErrNotFound}
	}
	return u, nil
}
