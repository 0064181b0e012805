package authapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"parley/cmd/identity"
	"parley/cmd/internal/auth/session"
	"parley/cmd/internal/chat"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	handler *Handler
	mux     *http.ServeMux
	users   *identity.MemoryStore
	chats   *chat.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := identity.NewMemoryStore()
	chats := chat.NewMemoryStore()

	sessCfg := session.Config{
		AccessTokenTTL:    30 * time.Minute,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		RefreshTokenBytes: 32,
		JWTSecret:         "0123456789abcdef0123456789abcdef",
	}
	tokens, err := session.NewJWTManager(sessCfg)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	sessions := session.NewService(sessCfg, session.NewMemoryStore(), tokens, users)

	cfg := Config{
		MaxBodyBytes:       1 << 20,
		LoginMax:           5,
		LoginWindow:        time.Minute,
		CookiePath:         "/",
		CookieSecure:       true,
		CookieSameSite:     http.SameSiteLaxMode,
		PostLoginRedirect:  "/chats",
		PostLogoutRedirect: "/login",
	}

	h, err := NewHandler(testLogger(), cfg, users, sessions, chats, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	return &testEnv{handler: h, mux: mux, users: users, chats: chats}
}

func (e *testEnv) createUser(t *testing.T, email, password string) identity.User {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), identity.CreateUserInput{
		Email:    email,
		Password: password,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *testEnv) postForm(t *testing.T, path, remoteAddr string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remoteAddr
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) login(t *testing.T, email, password, remoteAddr string) []*http.Cookie {
	t.Helper()

	rr := e.postForm(t, "/login", remoteAddr, url.Values{
		"email":    {email},
		"password": {password},
	}, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d, want 303 (body: %s)", rr.Code, rr.Body.String())
	}
	return rr.Result().Cookies()
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegister_SuccessAndDuplicate(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"email": {"alice@example.com"}, "password": {"password-123"}}

	rr := env.postForm(t, "/register", "10.0.0.1:40000", form, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("register status = %d, want 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Fatalf("register redirect = %q", loc)
	}

	rr = env.postForm(t, "/register", "10.0.0.1:40000", form, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register status = %d, want 400", rr.Code)
	}
}

func TestRegister_MalformedEmail(t *testing.T) {
	env := newTestEnv(t)

	rr := env.postForm(t, "/register", "10.0.0.1:40000", url.Values{
		"email":    {"not-an-email"},
		"password": {"password-123"},
	}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestLogin_SetsSessionCookies(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "password-123")

	cookies := env.login(t, "alice@example.com", "password-123", "10.0.0.1:40000")

	access := cookieByName(cookies, accessTokenCookie)
	refresh := cookieByName(cookies, refreshTokenCookie)
	if access == nil || access.Value == "" {
		t.Fatalf("access cookie missing")
	}
	if refresh == nil || refresh.Value == "" {
		t.Fatalf("refresh cookie missing")
	}
	for _, c := range []*http.Cookie{access, refresh} {
		if !c.HttpOnly || !c.Secure {
			t.Fatalf("cookie %s must be HttpOnly+Secure", c.Name)
		}
		if c.MaxAge <= 0 {
			t.Fatalf("cookie %s MaxAge = %d, want > 0", c.Name, c.MaxAge)
		}
	}
	if access.MaxAge >= refresh.MaxAge {
		t.Fatalf("access cookie must expire before refresh cookie")
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "password-123")

	cases := map[string]url.Values{
		"wrong password":  {"email": {"alice@example.com"}, "password": {"wrong-password"}},
		"unknown user":    {"email": {"carol@example.com"}, "password": {"password-123"}},
		"malformed email": {"email": {"not-an-email"}, "password": {"password-123"}},
		"missing fields":  {"email": {"alice@example.com"}},
	}

	for name, form := range cases {
		rr := env.postForm(t, "/login", "10.0.0.1:40000", form, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", name, rr.Code)
		}
		if len(rr.Result().Cookies()) != 0 {
			t.Fatalf("%s: cookies set on failed login", name)
		}
	}
}

func TestLogin_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "password-123")

	form := url.Values{"email": {"alice@example.com"}, "password": {"wrong-password"}}
	for i := 0; i < 5; i++ {
		rr := env.postForm(t, "/login", "10.0.0.7:40000", form, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("attempt %d: status = %d, want 400", i+1, rr.Code)
		}
	}

	rr := env.postForm(t, "/login", "10.0.0.7:40000", form, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("sixth attempt: status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("429 without Retry-After header")
	}

	// A different address is not affected.
	rr = env.postForm(t, "/login", "10.0.0.8:40000", url.Values{
		"email":    {"alice@example.com"},
		"password": {"password-123"},
	}, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("other address: status = %d, want 303", rr.Code)
	}
}

func TestRefresh_RotatesTokens(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "password-123")

	cookies := env.login(t, "alice@example.com", "password-123", "10.0.0.1:40000")
	oldRefresh := cookieByName(cookies, refreshTokenCookie)

	rr := env.postForm(t, "/refresh", "10.0.0.1:40000", nil, []*http.Cookie{oldRefresh})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("refresh status = %d, want 303", rr.Code)
	}

	rotated := rr.Result().Cookies()
	newRefresh := cookieByName(rotated, refreshTokenCookie)
	if newRefresh == nil || newRefresh.Value == "" {
		t.Fatalf("rotated refresh cookie missing")
	}
	if newRefresh.Value == oldRefresh.Value {
		t.Fatalf("refresh token not rotated")
	}
	if a := cookieByName(rotated, accessTokenCookie); a == nil || a.Value == "" {
		t.Fatalf("rotated access cookie missing")
	}

	// The spent token is gone.
	rr = env.postForm(t, "/refresh", "10.0.0.1:40000", nil, []*http.Cookie{oldRefresh})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("spent token refresh status = %d, want 401", rr.Code)
	}
	if n := len(rr.Result().Cookies()); n != 0 {
		t.Fatalf("rejected refresh set %d cookies, want none", n)
	}
}

func TestRefresh_RejectionLeavesCookiesUntouched(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name    string
		cookies []*http.Cookie
	}{
		{name: "missing token", cookies: nil},
		{name: "garbage token", cookies: []*http.Cookie{
			{Name: refreshTokenCookie, Value: "garbage-token"},
		}},
	}

	for _, tc := range cases {
		rr := env.postForm(t, "/refresh", "10.0.0.1:40000", nil, tc.cookies)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", tc.name, rr.Code)
		}
		// A 401 must not clear or rewrite the client's cookies.
		if got := rr.Result().Header.Values("Set-Cookie"); len(got) != 0 {
			t.Fatalf("%s: 401 refresh sent Set-Cookie %q, want none", tc.name, got)
		}
	}
}

func TestLogout_IdempotentAndClearsCookies(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "password-123")

	cookies := env.login(t, "alice@example.com", "password-123", "10.0.0.1:40000")
	refresh := cookieByName(cookies, refreshTokenCookie)

	rr := env.postForm(t, "/logout", "10.0.0.1:40000", nil, []*http.Cookie{refresh})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("logout status = %d, want 303", rr.Code)
	}
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		c := cookieByName(rr.Result().Cookies(), name)
		if c == nil || c.MaxAge >= 0 {
			t.Fatalf("cookie %s not cleared", name)
		}
	}

	// Revoked token cannot refresh.
	rr = env.postForm(t, "/refresh", "10.0.0.1:40000", nil, []*http.Cookie{refresh})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status = %d, want 401", rr.Code)
	}

	// Repeating logout, with or without cookies, still succeeds.
	rr = env.postForm(t, "/logout", "10.0.0.1:40000", nil, []*http.Cookie{refresh})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("repeat logout status = %d, want 303", rr.Code)
	}
	rr = env.postForm(t, "/logout", "10.0.0.1:40000", nil, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("cookie-less logout status = %d, want 303", rr.Code)
	}
}

func TestLogoutAll_RevokesEverySession(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "password-123")

	first := env.login(t, "alice@example.com", "password-123", "10.0.0.1:40000")
	second := env.login(t, "alice@example.com", "password-123", "10.0.0.1:40000")

	rr := env.postForm(t, "/logout/all", "10.0.0.1:40000", nil, []*http.Cookie{
		cookieByName(second, accessTokenCookie),
	})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("logout/all status = %d, want 303", rr.Code)
	}

	for i, cookies := range [][]*http.Cookie{first, second} {
		refresh := cookieByName(cookies, refreshTokenCookie)
		rr := env.postForm(t, "/refresh", "10.0.0.1:40000", nil, []*http.Cookie{refresh})
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("session %d refresh after logout/all: status = %d, want 401", i+1, rr.Code)
		}
	}
}

func TestLogoutAll_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.postForm(t, "/logout/all", "10.0.0.1:40000", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestChatStart_AndList(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@example.com", "password-123")
	bob := env.createUser(t, "bob@example.com", "password-123")

	cookies := env.login(t, "alice@example.com", "password-123", "10.0.0.1:40000")
	access := cookieByName(cookies, accessTokenCookie)

	rr := env.postForm(t, "/chats/start", "10.0.0.1:40000", url.Values{
		"email": {"bob@example.com"},
	}, []*http.Cookie{access})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("chat start status = %d, want 303 (body: %s)", rr.Code, rr.Body.String())
	}
	loc := rr.Header().Get("Location")
	if !strings.HasPrefix(loc, "/messages?chat_id=") {
		t.Fatalf("chat start redirect = %q", loc)
	}
	chatID := strings.TrimPrefix(loc, "/messages?chat_id=")

	// Starting again from the other side lands on the same conversation.
	bobCookies := env.login(t, "bob@example.com", "password-123", "10.0.0.2:40000")
	rr = env.postForm(t, "/chats/start", "10.0.0.2:40000", url.Values{
		"email": {"alice@example.com"},
	}, []*http.Cookie{cookieByName(bobCookies, accessTokenCookie)})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("reverse chat start status = %d", rr.Code)
	}
	if got := strings.TrimPrefix(rr.Header().Get("Location"), "/messages?chat_id="); got != chatID {
		t.Fatalf("reverse chat start id = %q, want %q", got, chatID)
	}

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	req.RemoteAddr = "10.0.0.1:40000"
	req.AddCookie(access)
	lr := httptest.NewRecorder()
	env.mux.ServeHTTP(lr, req)

	if lr.Code != http.StatusOK {
		t.Fatalf("list chats status = %d, want 200", lr.Code)
	}
	var resp conversationListResponse
	if err := json.Unmarshal(lr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode chats: %v", err)
	}
	if len(resp.Conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(resp.Conversations))
	}
	conv := resp.Conversations[0]
	ids := map[string]bool{conv.UserA: true, conv.UserB: true}
	if !ids[alice.ID] || !ids[bob.ID] {
		t.Fatalf("conversation parties %q/%q do not match users", conv.UserA, conv.UserB)
	}
}

func TestChatStart_SelfAndUnknownPeer(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "alice@example.com", "password-123")

	cookies := env.login(t, "alice@example.com", "password-123", "10.0.0.1:40000")
	access := cookieByName(cookies, accessTokenCookie)

	rr := env.postForm(t, "/chats/start", "10.0.0.1:40000", url.Values{
		"email": {"alice@example.com"},
	}, []*http.Cookie{access})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("self chat status = %d, want 400", rr.Code)
	}

	rr = env.postForm(t, "/chats/start", "10.0.0.1:40000", url.Values{
		"email": {"ghost@example.com"},
	}, []*http.Cookie{access})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown peer status = %d, want 400", rr.Code)
	}
}
