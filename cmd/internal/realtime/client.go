package realtime

import "sync"

// Client is one live websocket subscription to a conversation.
//
// Send is never closed; broadcasters may be enqueueing concurrently with
// shutdown, and a closed channel would panic them. Readers stop via Done.
type Client struct {
	SessionID string
	UserID    string
	Send      chan string

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient builds a client with a bounded outbound queue.
func NewClient(userID, sessionID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		SessionID: sessionID,
		UserID:    userID,
		Send:      make(chan string, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// Done is closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Close signals shutdown. Idempotent; Send stays open.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
