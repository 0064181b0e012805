package identity

import (
	"context"
	"time"
)

// User is Parley's security principal.
type User struct {
	ID           string
	Email        string
	PasswordHash string

	CreatedAt time.Time
}

// CreateUserInput describes a registration request. Password must be plain;
// the store hashes it before persisting.
type CreateUserInput struct {
	Email    string
	Password string
	Now      time.Time
}

// Store is the user persistence boundary.
//
// Error contract:
//   - CreateUser returns an ErrConflict kind when the email is taken and an
//     ErrInvalidInput kind for empty/invalid fields.
//   - Lookups return an ErrNotFound kind for missing users.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
}
