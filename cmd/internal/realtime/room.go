package realtime

import (
	"log/slog"
	"sync"
)

// Room is the in-memory membership + broadcast fanout primitive for one
// conversation.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
// - Publish serializes persist+fanout per room, so every member observes
//   messages in the same relative order.
type Room struct {
	log *slog.Logger
	ID  string

	mu      sync.RWMutex
	members map[string]*Client

	// pub serializes persist+broadcast (and join+replay) so that a client
	// never sees a live frame reordered against history.
	pub sync.Mutex
}

// NewRoom constructs a room.
func NewRoom(log *slog.Logger, id string) *Room {
	return &Room{
		log:     log,
		ID:      id,
		members: make(map[string]*Client),
	}
}

// Join adds a client to membership. When replay is non-nil it runs under the
// publish lock and its frames are enqueued to the joining client before any
// subsequent Publish can interleave.
func (r *Room) Join(client *Client, replay func() ([]string, error)) error {
	if r == nil || client == nil || client.SessionID == "" {
		return nil
	}

	r.pub.Lock()
	defer r.pub.Unlock()

	var frames []string
	if replay != nil {
		var err error
		frames, err = replay()
		if err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.members[client.SessionID] = client
	r.mu.Unlock()

	for _, f := range frames {
		select {
		case client.Send <- f:
		default:
			// History outran the send queue; the client will reconnect.
		}
	}

	r.log.Info("room.member.join", "conversation_id", r.ID, "session_id", client.SessionID, "user_id", client.UserID)
	return nil
}

// Leave removes a client from membership and signals shutdown for that client.
func (r *Room) Leave(sessionID string) {
	if r == nil || sessionID == "" {
		return
	}

	var cl *Client

	r.mu.Lock()
	cl = r.members[sessionID]
	delete(r.members, sessionID)
	r.mu.Unlock()

	// Signal client shutdown after removing from membership.
	// This ordering avoids race windows where a broadcaster still holds a pointer
	// while the client goroutines are being torn down.
	if cl != nil {
		cl.Close()
	}

	r.log.Info("room.member.leave", "conversation_id", r.ID, "session_id", sessionID)
}

// Publish persists a message through the persist callback and fans the
// rendered frame out to all members. persist runs under the publish lock,
// which is what makes the fanout order identical for every subscriber.
func (r *Room) Publish(persist func() (string, error)) error {
	if r == nil {
		return nil
	}

	r.pub.Lock()
	defer r.pub.Unlock()

	frame, err := persist()
	if err != nil {
		return err
	}

	r.Broadcast(frame)
	return nil
}

// Broadcast fanouts a frame to all members.
// Non-blocking: if a member queue is full or the client is shutting down, it is dropped.
func (r *Room) Broadcast(frame string) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members {
		if m == nil {
			continue
		}

		select {
		case <-m.Done():
			// Skip clients that are shutting down.
			continue
		default:
		}

		select {
		case m.Send <- frame:
		default:
			// Drop rather than block the whole room.
		}
	}
}
