package session

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL (parley.refresh_tokens).
//
// Ownership model: the store does NOT own the pgx pool; the caller closes it.
//
// Rotation safety: Rotate runs DELETE-old + INSERT-new inside one transaction.
// The row delete is the linearization point: a concurrent transaction rotating
// the same hash blocks on the row lock and, once the winner commits, deletes
// zero rows and observes ErrNotFound. Together with the unique constraint on
// token_hash this prevents refresh-token double-spend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed refresh-token store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("session: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// Create inserts a refresh record, failing with ErrConflict on duplicate hash.
func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO parley.refresh_tokens (
			id, token_hash, user_id, expires_at, user_agent, ip_address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.TokenHash, rec.UserID, rec.ExpiresAt, rec.Device.UserAgent, rec.Device.IP, rec.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// FindByHash loads a refresh record by token hash.
func (s *PostgresStore) FindByHash(ctx context.Context, tokenHash string) (Record, error) {
	var rec Record
	err := s.pool.QueryRow(ctx, `
		SELECT id, token_hash, user_id, expires_at, user_agent, ip_address, created_at
		FROM parley.refresh_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&rec.ID,
		&rec.TokenHash,
		&rec.UserID,
		&rec.ExpiresAt,
		&rec.Device.UserAgent,
		&rec.Device.IP,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// DeleteByHash removes the record if present (idempotent).
func (s *PostgresStore) DeleteByHash(ctx context.Context, tokenHash string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM parley.refresh_tokens
		WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAllForUser removes every record belonging to userID.
func (s *PostgresStore) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM parley.refresh_tokens
		WHERE user_id = $1
	`, userID)
	return err
}

// Rotate atomically replaces the record with oldHash by repl.
func (s *PostgresStore) Rotate(ctx context.Context, oldHash string, repl Record) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		DELETE FROM parley.refresh_tokens
		WHERE token_hash = $1
	`, oldHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// A concurrent rotation won; present this as a spent token.
		return ErrNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO parley.refresh_tokens (
			id, token_hash, user_id, expires_at, user_agent, ip_address, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, repl.ID, repl.TokenHash, repl.UserID, repl.ExpiresAt, repl.Device.UserAgent, repl.Device.IP, repl.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
