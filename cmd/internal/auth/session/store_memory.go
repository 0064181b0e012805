package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and DB-less dev mode.
// All operations are linearized under one mutex, which makes Rotate atomic.
type MemoryStore struct {
	mu     sync.Mutex
	byHash map[string]Record
}

// NewMemoryStore constructs an empty in-memory refresh-token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]Record)}
}

// Create inserts a record, failing with ErrConflict on a duplicate hash.
func (s *MemoryStore) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byHash[rec.TokenHash]; dup {
		return ErrConflict
	}
	s.byHash[rec.TokenHash] = rec
	return nil
}

// FindByHash returns the record for tokenHash or ErrNotFound.
func (s *MemoryStore) FindByHash(ctx context.Context, tokenHash string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byHash[tokenHash]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// DeleteByHash removes the record if present and reports whether it existed.
func (s *MemoryStore) DeleteByHash(ctx context.Context, tokenHash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.byHash[tokenHash]
	delete(s.byHash, tokenHash)
	return ok, nil
}

// DeleteAllForUser removes every record belonging to userID.
func (s *MemoryStore) DeleteAllForUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, rec := range s.byHash {
		if rec.UserID == userID {
			delete(s.byHash, hash)
		}
	}
	return nil
}

// Rotate atomically replaces the record with oldHash by repl.
func (s *MemoryStore) Rotate(ctx context.Context, oldHash string, repl Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byHash[oldHash]; !ok {
		return ErrNotFound
	}
	if _, dup := s.byHash[repl.TokenHash]; dup {
		return ErrConflict
	}

	delete(s.byHash, oldHash)
	s.byHash[repl.TokenHash] = repl
	return nil
}
