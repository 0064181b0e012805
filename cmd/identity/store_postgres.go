package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL (parley.users).
//
// Ownership model: the store does NOT own the pgx pool; the caller closes it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed user store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("identity: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// CreateUser inserts a user row, hashing the password first.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
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

	u := User{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO parley.users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return User{}, OpError{Op: "identity.CreateUser", Kind: ErrConflict, Msg: "email"}
		}
		return User{}, err
	}

	return u, nil
}

// GetUserByEmail loads a user row by normalized email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `
		SELECT id, email, password_hash, created_at
		FROM parley.users
		WHERE email = $1
	`, "identity.GetUserByEmail", NormalizeEmail(email))
}

// GetUserByID loads a user row by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, `
		SELECT id, email, password_hash, created_at
		FROM parley.users
		WHERE id = $1
	`, "identity.GetUserByID", id)
}

func (s *PostgresStore) getUser(ctx context.Context, query, op, arg string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}
