package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"parley/cmd/identity"
	"parley/cmd/internal/auth/session"
	"parley/cmd/internal/chat"

	"github.com/coder/websocket"
	"github.com/oklog/ulid/v2"
)

const (
	wsDefaultSendQueueSize = 256
	wsMinSendQueueSize     = 32

	wsDefaultWriteTimeout = 5 * time.Second
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	accessTokenCookieName = "access_token"
)

// Stats receives gateway lifecycle events. The app layer backs it with
// Prometheus collectors; tests and DB-less dev use NopStats.
type Stats interface {
	ConnOpened()
	ConnClosed()
	MessageBroadcast()
}

// NopStats is a Stats implementation that records nothing.
type NopStats struct{}

func (NopStats) ConnOpened()       {}
func (NopStats) ConnClosed()       {}
func (NopStats) MessageBroadcast() {}

// WSGateway is the WebSocket entrypoint for realtime chat.
//
// It authenticates the access-token cookie, authorizes conversation
// membership, replays history, and relays plain text frames between the two
// participants. Outbound frames are rendered as "<sender id>: <content>".
type WSGateway struct {
	log      *slog.Logger
	registry *Registry
	chats    chat.Store
	users    identity.Store
	tokens   session.AccessTokenManager
	stats    Stats

	devInsecure    bool
	originPatterns []string

	writeTimeout  time.Duration
	sendQueueSize int

	heartbeatEvery   time.Duration
	heartbeatTimeout time.Duration
}

// NewWSGateway constructs a gateway with secure defaults.
func NewWSGateway(log *slog.Logger, registry *Registry, chats chat.Store, users identity.Store, tokens session.AccessTokenManager, stats Stats) *WSGateway {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if registry == nil {
		registry = NewRegistry(log)
	}
	if stats == nil {
		stats = NopStats{}
	}

	g := &WSGateway{
		log:      log,
		registry: registry,
		chats:    chats,
		users:    users,
		tokens:   tokens,
		stats:    stats,
	}

	// NOTE: InsecureSkipVerify is a dev-only knob (TLS/origin verification).
	g.devInsecure = envBoolWS("PARLEY_WS_DEV_INSECURE", false)

	// websocket.Accept authorizes same-host origins by default; cross-origin
	// hosts must be listed explicitly.
	g.originPatterns = envCSVWS("PARLEY_WS_ALLOWED_ORIGINS", "")

	g.writeTimeout = envDurationWS("PARLEY_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)

	g.sendQueueSize = envIntWS("PARLEY_WS_SEND_QUEUE", wsDefaultSendQueueSize)
	if g.sendQueueSize < wsMinSendQueueSize {
		g.sendQueueSize = wsMinSendQueueSize
	}

	g.heartbeatEvery = envDurationWS("PARLEY_WS_HEARTBEAT_INTERVAL", heartbeatInterval)
	g.heartbeatTimeout = envDurationWS("PARLEY_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout)

	return g
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the relay loop.
//
// Expects the conversation id as the "conversation_id" path value and a valid
// access_token cookie. Auth and membership failures close the socket with a
// policy-violation status before any data frame is sent.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conversationID := strings.TrimSpace(r.PathValue("conversation_id"))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.devInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	conn.SetReadLimit(maxFrameBytes)

	user, err := g.authenticate(r)
	if err != nil {
		g.log.Info("ws.reject.auth", "conversation_id", conversationID, "remote", r.RemoteAddr, "err", err)
		_ = conn.Close(websocket.StatusPolicyViolation, "unauthorized")
		return
	}

	conv, err := g.authorize(r.Context(), conversationID, user.ID)
	if err != nil {
		g.log.Info("ws.reject.membership", "conversation_id", conversationID, "user_id", user.ID, "err", err)
		_ = conn.Close(websocket.StatusPolicyViolation, "forbidden")
		return
	}

	sessionID := ulid.Make().String()
	client := NewClient(user.ID, sessionID, g.sendQueueSize)
	room := g.registry.GetOrCreateRoom(conv.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once

	// shutdown is idempotent. It does NOT close client.Send.
	// Broadcast safety: client.Send remains open and membership removal happens before client.Close.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			room.Leave(sessionID)
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case frame := <-client.Send:
				if err := writeFrame(ctx, conn, frame, g.writeTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.heartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.heartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	// Join and history replay run under the room publish lock, so a live
	// message published during replay is queued after the history frames.
	err = room.Join(client, func() ([]string, error) {
		msgs, err := g.chats.ListMessages(ctx, conv.ID)
		if err != nil {
			return nil, err
		}
		frames := make([]string, 0, len(msgs))
		for _, m := range msgs {
			frames = append(frames, renderFrame(m.SenderID, m.Content))
		}
		return frames, nil
	})
	if err != nil {
		g.log.Error("ws.history.fail", "conversation_id", conv.ID, "session_id", sessionID, "err", err)
		shutdown(websocket.StatusInternalError, "history unavailable")
		<-writerDone
		return
	}

	g.stats.ConnOpened()
	defer g.stats.ConnClosed()

	g.log.Info("ws.session.open", "conversation_id", conv.ID, "session_id", sessionID, "user_id", user.ID)

	// The read blocks without a deadline. A quiet connection stays open as
	// long as the transport is alive; the heartbeat goroutine is the only
	// liveness policy.
readLoop:
	for {
		text, err := readFrame(ctx, conn)
		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
			default:
				g.log.Info("ws.read.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
			}
			break readLoop
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue readLoop
		}
		if len([]rune(text)) > maxMessageChars {
			shutdown(websocket.StatusMessageTooBig, fmt.Sprintf("message too long: max=%d chars", maxMessageChars))
			break readLoop
		}

		now := time.Now().UTC()
		err = room.Publish(func() (string, error) {
			msg, err := g.chats.AppendMessage(ctx, chat.AppendMessageInput{
				ConversationID: conv.ID,
				SenderID:       user.ID,
				Content:        text,
				Now:            now,
			})
			if err != nil {
				return "", err
			}
			return renderFrame(msg.SenderID, msg.Content), nil
		})
		if err != nil {
			g.log.Error("ws.publish.fail", "conversation_id", conv.ID, "session_id", sessionID, "err", err)
			shutdown(websocket.StatusInternalError, "publish failed")
			break readLoop
		}
		g.stats.MessageBroadcast()
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}

	g.log.Info("ws.session.close", "conversation_id", conv.ID, "session_id", sessionID)
}

// authenticate resolves the access-token cookie to a known user.
func (g *WSGateway) authenticate(r *http.Request) (identity.User, error) {
	c, err := r.Cookie(accessTokenCookieName)
	if err != nil || strings.TrimSpace(c.Value) == "" {
		return identity.User{}, errors.New("missing access token cookie")
	}

	claims, err := g.tokens.Verify(c.Value, time.Now().UTC())
	if err != nil {
		return identity.User{}, err
	}

	user, err := g.users.GetUserByEmail(r.Context(), claims.Subject)
	if err != nil {
		return identity.User{}, fmt.Errorf("subject lookup: %w", err)
	}
	return user, nil
}

// authorize loads the conversation and checks the user is one of its two parties.
func (g *WSGateway) authorize(ctx context.Context, conversationID, userID string) (chat.Conversation, error) {
	if conversationID == "" {
		return chat.Conversation{}, errors.New("missing conversation id")
	}

	conv, err := g.chats.GetConversation(ctx, conversationID)
	if err != nil {
		return chat.Conversation{}, err
	}
	if !conv.HasParticipant(userID) {
		return chat.Conversation{}, errors.New("not a participant")
	}
	return conv, nil
}

// renderFrame is the outbound wire shape of one chat message.
func renderFrame(senderID, content string) string {
	return senderID + ": " + content
}

// ---- frame IO ----

func readFrame(ctx context.Context, conn *websocket.Conn) (string, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return "", err
	}
	if mt != websocket.MessageText {
		return "", fmt.Errorf("unsupported message type: %v", mt)
	}
	return string(data), nil
}

func writeFrame(parent context.Context, conn *websocket.Conn, frame string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	return conn.Write(ctx, websocket.MessageText, []byte(frame))
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}
	return readErrUnknown
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
