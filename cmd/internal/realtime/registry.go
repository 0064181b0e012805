package realtime

import (
	"log/slog"
	"sync"
)

// Registry owns in-memory rooms and provides stable per-conversation handles.
// It is intentionally minimal: persistence lives behind chat.Store.
type Registry struct {
	log *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry constructs a Registry instance.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		rooms: make(map[string]*Room),
	}
}

// GetOrCreateRoom returns a stable in-memory room handle for a conversation.
func (g *Registry) GetOrCreateRoom(conversationID string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.rooms[conversationID]; ok {
		return r
	}

	r := NewRoom(g.log, conversationID)
	g.rooms[conversationID] = r
	return r
}
