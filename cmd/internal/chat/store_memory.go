package chat

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemoryStore is an in-memory Store used by tests and DB-less dev mode.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]Conversation
	byPair map[[2]string]string // canonical pair -> conversation id
	msgs   map[string][]Message // conversation id -> messages, append order
}

// NewMemoryStore constructs an empty in-memory chat store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]Conversation),
		byPair: make(map[[2]string]string),
		msgs:   make(map[string][]Message),
	}
}

// StartConversation returns the conversation for the pair, creating it lazily.
func (s *MemoryStore) StartConversation(ctx context.Context, userX, userY string) (Conversation, error) {
	if err := ctx.Err(); err != nil {
		return Conversation{}, err
	}

	a, b, err := canonicalPair(userX, userY)
	if err != nil {
		return Conversation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPair[[2]string{a, b}]; ok {
		return s.byID[id], nil
	}

	conv := Conversation{
		ID:        ulid.Make().String(),
		UserA:     a,
		UserB:     b,
		CreatedAt: time.Now().UTC(),
	}
	s.byID[conv.ID] = conv
	s.byPair[[2]string{a, b}] = conv.ID
	return conv, nil
}

// GetConversation loads a conversation by id.
func (s *MemoryStore) GetConversation(ctx context.Context, id string) (Conversation, error) {
	if err := ctx.Err(); err != nil {
		return Conversation{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.byID[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return conv, nil
}

// ListConversationsForUser returns every conversation the user participates in.
func (s *MemoryStore) ListConversationsForUser(ctx context.Context, userID string) ([]Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Conversation
	for _, conv := range s.byID {
		if conv.HasParticipant(userID) {
			out = append(out, conv)
		}
	}
	return out, nil
}

// AppendMessage persists one message for an existing conversation.
func (s *MemoryStore) AppendMessage(ctx context.Context, in AppendMessageInput) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[in.ConversationID]; !ok {
		return Message{}, ErrNotFound
	}

	msg := Message{
		ID:             ulid.Make().String(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		CreatedAt:      now,
	}
	s.msgs[in.ConversationID] = append(s.msgs[in.ConversationID], msg)
	return msg, nil
}

// ListMessages returns messages in append (created_at) order.
func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.msgs[conversationID]
	out := make([]Message, len(src))
	copy(out, src)
	return out, nil
}
