package authapi

import (
	"time"

	"parley/cmd/internal/chat"
)

type conversationResponse struct {
	ID        string    `json:"id"`
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
}

type conversationListResponse struct {
	Conversations []conversationResponse `json:"conversations"`
}

func toConversationListResponse(convs []chat.Conversation) conversationListResponse {
	out := conversationListResponse{
		Conversations: make([]conversationResponse, 0, len(convs)),
	}
	for _, c := range convs {
		out.Conversations = append(out.Conversations, conversationResponse{
			ID:        c.ID,
			UserA:     c.UserA,
			UserB:     c.UserB,
			CreatedAt: c.CreatedAt,
		})
	}
	return out
}
