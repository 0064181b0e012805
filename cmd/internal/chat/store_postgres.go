package chat

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

const pgForeignKeyViolation = "23503"

// PostgresStore implements Store using PostgreSQL
// (parley.conversations, parley.messages).
//
// Ownership model: the store does NOT own the pgx pool; the caller closes it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed chat store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("chat: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// StartConversation returns the conversation for the pair, creating it lazily.
// The unique constraint on (user_a, user_b) plus canonical ordering guarantees
// at most one conversation per unordered pair, even under concurrent starts.
func (s *PostgresStore) StartConversation(ctx context.Context, userX, userY string) (Conversation, error) {
	a, b, err := canonicalPair(userX, userY)
	if err != nil {
		return Conversation{}, err
	}

	conv := Conversation{
		ID:        ulid.Make().String(),
		UserA:     a,
		UserB:     b,
		CreatedAt: time.Now().UTC(),
	}

	// Insert-or-fetch in one round trip: a losing concurrent insert falls
	// through to the existing row.
	err = s.pool.QueryRow(ctx, `
		WITH created AS (
			INSERT INTO parley.conversations (id, user_a, user_b, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_a, user_b) DO NOTHING
			RETURNING id, user_a, user_b, created_at
		)
		SELECT id, user_a, user_b, created_at FROM created
		UNION ALL
		SELECT id, user_a, user_b, created_at
		FROM parley.conversations
		WHERE user_a = $2 AND user_b = $3
		LIMIT 1
	`, conv.ID, a, b, conv.CreatedAt).Scan(&conv.ID, &conv.UserA, &conv.UserB, &conv.CreatedAt)
	if err != nil {
		return Conversation{}, err
	}

	return conv, nil
}

// GetConversation loads a conversation by id.
func (s *PostgresStore) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var conv Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_a, user_b, created_at
		FROM parley.conversations
		WHERE id = $1
	`, id).Scan(&conv.ID, &conv.UserA, &conv.UserB, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// ListConversationsForUser returns every conversation the user participates in.
func (s *PostgresStore) ListConversationsForUser(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_a, user_b, created_at
		FROM parley.conversations
		WHERE user_a = $1 OR user_b = $1
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.UserA, &conv.UserB, &conv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// AppendMessage persists one message for an existing conversation.
func (s *PostgresStore) AppendMessage(ctx context.Context, in AppendMessageInput) (Message, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	msg := Message{
		ID:             ulid.Make().String(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		CreatedAt:      now,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO parley.messages (id, conversation_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.CreatedAt)
	if isForeignKeyViolation(err) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// ListMessages returns messages ordered by created_at ascending.
// The ULID id breaks created_at ties deterministically.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at
		FROM parley.messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
