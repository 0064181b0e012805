// Package main provides a CI-friendly smoke test for a running parley server.
//
// It validates:
//   - register + login form flow (303 + session cookies)
//   - chat creation between two users
//   - websocket handshake with the access-token cookie
//   - send -> fanout to both participants
//   - history replay on reconnect
//   - refresh rotation and logout
//
// When smoking over plain http, run the server with
// PARLEY_AUTH_COOKIE_SECURE=false so the cookie jar returns the session
// cookies for non-TLS requests.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type smokeUser struct {
	name   string
	email  string
	client *http.Client
	base   *url.URL
}

func main() {
	var (
		base     = flag.String("base", "http://127.0.0.1:8080", "Server base URL")
		password = flag.String("password", "smoke-password-123", "Password used for the throwaway accounts")
		text     = flag.String("text", "hello parley", "Message text to send")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	baseURL, err := url.Parse(strings.TrimRight(*base, "/"))
	if err != nil || baseURL.Host == "" {
		fatalf("invalid -base: %v", err)
	}

	root := context.Background()
	stamp := time.Now().UnixNano()

	a := newSmokeUser("A", fmt.Sprintf("smoke-a-%d@example.com", stamp), baseURL)
	b := newSmokeUser("B", fmt.Sprintf("smoke-b-%d@example.com", stamp), baseURL)

	for _, u := range []*smokeUser{a, b} {
		mustRegister(root, u, *password, *timeout)
		mustLogin(root, u, *password, *timeout)
	}
	if *verbose {
		fmt.Printf("logged in: A=%s B=%s\n", a.email, b.email)
	}

	chatID := mustStartChat(root, a, b.email, *timeout)
	if *verbose {
		fmt.Printf("chat started: %s\n", chatID)
	}

	connA := mustDialWS(root, a, chatID, *timeout)
	defer closeWS(connA)
	connB := mustDialWS(root, b, chatID, *timeout)
	defer closeWS(connB)

	mustWrite(root, connA, *text, *timeout)

	frameA := mustRead(root, connA, *timeout)
	frameB := mustRead(root, connB, *timeout)
	if frameA != frameB {
		fatalf("fanout mismatch: A=%q B=%q", frameA, frameB)
	}
	if !strings.HasSuffix(frameA, ": "+*text) {
		fatalf("unexpected frame shape: %q", frameA)
	}

	// Reconnect B and expect the same message replayed from history.
	closeWS(connB)
	connB2 := mustDialWS(root, b, chatID, *timeout)
	defer closeWS(connB2)
	if replay := mustRead(root, connB2, *timeout); replay != frameA {
		fatalf("history replay mismatch: got %q want %q", replay, frameA)
	}

	mustRefresh(root, a, *timeout)
	mustLogout(root, a, *timeout)

	fmt.Printf("OK: chat_id=%s frame=%q\n", chatID, frameA)
}

func newSmokeUser(name, email string, base *url.URL) *smokeUser {
	jar, err := cookiejar.New(nil)
	if err != nil {
		fatalf("cookie jar: %v", err)
	}
	return &smokeUser{
		name:  name,
		email: email,
		base:  base,
		client: &http.Client{
			Jar: jar,
			// The form endpoints answer with 303; keep the responses observable.
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (u *smokeUser) postForm(ctx context.Context, path string, form url.Values, timeout time.Duration) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.base.String()+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxReadBytes))
	return resp, nil
}

func (u *smokeUser) cookieHeader() string {
	cookies := u.client.Jar.Cookies(u.base)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

func mustRegister(ctx context.Context, u *smokeUser, password string, timeout time.Duration) {
	resp, err := u.postForm(ctx, "/register", url.Values{
		"email":    {u.email},
		"password": {password},
	}, timeout)
	if err != nil {
		fatalf("%s register: %v", u.name, err)
	}
	if resp.StatusCode != http.StatusSeeOther {
		fatalf("%s register: status %d", u.name, resp.StatusCode)
	}
}

func mustLogin(ctx context.Context, u *smokeUser, password string, timeout time.Duration) {
	resp, err := u.postForm(ctx, "/login", url.Values{
		"email":    {u.email},
		"password": {password},
	}, timeout)
	if err != nil {
		fatalf("%s login: %v", u.name, err)
	}
	if resp.StatusCode != http.StatusSeeOther {
		fatalf("%s login: status %d", u.name, resp.StatusCode)
	}
	if !hasCookie(u, "access_token") || !hasCookie(u, "refresh_token") {
		fatalf("%s login: session cookies missing", u.name)
	}
}

func mustStartChat(ctx context.Context, u *smokeUser, peerEmail string, timeout time.Duration) string {
	resp, err := u.postForm(ctx, "/chats/start", url.Values{"email": {peerEmail}}, timeout)
	if err != nil {
		fatalf("%s chats/start: %v", u.name, err)
	}
	if resp.StatusCode != http.StatusSeeOther {
		fatalf("%s chats/start: status %d", u.name, resp.StatusCode)
	}

	loc, err := resp.Location()
	if err != nil {
		fatalf("%s chats/start: missing location: %v", u.name, err)
	}
	chatID := loc.Query().Get("chat_id")
	if chatID == "" {
		fatalf("%s chats/start: no chat_id in %q", u.name, loc.String())
	}
	return chatID
}

func mustRefresh(ctx context.Context, u *smokeUser, timeout time.Duration) {
	before := cookieValue(u, "refresh_token")

	resp, err := u.postForm(ctx, "/refresh", nil, timeout)
	if err != nil {
		fatalf("%s refresh: %v", u.name, err)
	}
	if resp.StatusCode != http.StatusSeeOther {
		fatalf("%s refresh: status %d", u.name, resp.StatusCode)
	}
	if after := cookieValue(u, "refresh_token"); after == "" || after == before {
		fatalf("%s refresh: token not rotated", u.name)
	}
}

func mustLogout(ctx context.Context, u *smokeUser, timeout time.Duration) {
	resp, err := u.postForm(ctx, "/logout", nil, timeout)
	if err != nil {
		fatalf("%s logout: %v", u.name, err)
	}
	if resp.StatusCode != http.StatusSeeOther {
		fatalf("%s logout: status %d", u.name, resp.StatusCode)
	}
}

func mustDialWS(ctx context.Context, u *smokeUser, chatID string, timeout time.Duration) *websocket.Conn {
	wsURL := *u.base
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/ws/" + chatID

	hdr := http.Header{}
	if c := u.cookieHeader(); c != "" {
		hdr.Set("Cookie", c)
	}

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dctx, wsURL.String(), &websocket.DialOptions{HTTPHeader: hdr})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("%s ws dial: %v", u.name, err)
	}
	conn.SetReadLimit(maxReadBytes)
	return conn
}

func mustWrite(ctx context.Context, conn *websocket.Conn, text string, timeout time.Duration) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.Write(wctx, websocket.MessageText, []byte(text)); err != nil {
		fatalf("ws write: %v", err)
	}
}

func mustRead(ctx context.Context, conn *websocket.Conn, timeout time.Duration) string {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	mt, data, err := conn.Read(rctx)
	if err != nil {
		fatalf("ws read: %v", err)
	}
	if mt != websocket.MessageText {
		fatalf("ws read: unexpected message type %v", mt)
	}
	return string(data)
}

func hasCookie(u *smokeUser, name string) bool {
	return cookieValue(u, name) != ""
}

func cookieValue(u *smokeUser, name string) string {
	for _, c := range u.client.Jar.Cookies(u.base) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func closeWS(conn *websocket.Conn) {
	if conn == nil {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "SMOKE FAIL: "+format+"\n", args...)
	os.Exit(1)
}
