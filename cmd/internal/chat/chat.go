// Package chat owns conversation and message persistence.
//
// A conversation is the unique pairing of two user identities, stored as a
// canonically ordered pair so that at most one conversation exists per
// unordered pair. Messages are append-only and replayed in created_at order.
package chat

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrInvalidPair is returned for a self-conversation or missing participant.
	ErrInvalidPair = errors.New("invalid participant pair")
)

// Conversation is the unique, canonically ordered pairing of two users.
// UserA < UserB always holds. Conversations are created lazily on first
// contact and never deleted.
type Conversation struct {
	ID        string
	UserA     string
	UserB     string
	CreatedAt time.Time
}

// HasParticipant reports whether userID is one of the two parties.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.UserA || userID == c.UserB)
}

// Message is one append-only chat entry. The ordering key for replay is
// CreatedAt ascending (ID, a ULID, breaks ties).
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	CreatedAt      time.Time
}

// AppendMessageInput describes a message append request.
type AppendMessageInput struct {
	ConversationID string
	SenderID       string
	Content        string
	Now            time.Time
}

// Store is the conversation/message persistence boundary.
type Store interface {
	// StartConversation returns the conversation for the unordered pair
	// (userX, userY), creating it on first contact. Order-independent:
	// (A, B) and (B, A) yield the same conversation.
	StartConversation(ctx context.Context, userX, userY string) (Conversation, error)

	GetConversation(ctx context.Context, id string) (Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]Conversation, error)

	AppendMessage(ctx context.Context, in AppendMessageInput) (Message, error)

	// ListMessages returns all messages of a conversation ordered by
	// CreatedAt ascending.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
}

// canonicalPair orders an unordered user pair deterministically.
func canonicalPair(x, y string) (a, b string, err error) {
	if x == "" || y == "" || x == y {
		return "", "", ErrInvalidPair
	}
	if x < y {
		return x, y, nil
	}
	return y, x, nil
}
