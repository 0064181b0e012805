package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"parley/cmd/identity"
	"parley/cmd/internal/auth/session"
	"parley/cmd/internal/chat"

	"github.com/go-playground/validator/v10"
)

// Stats receives login outcome events. The app layer backs it with
// Prometheus collectors; tests use NopStats.
type Stats interface {
	LoginSucceeded()
	LoginFailed()
	LoginRateLimited()
}

// NopStats is a Stats implementation that records nothing.
type NopStats struct{}

func (NopStats) LoginSucceeded()   {}
func (NopStats) LoginFailed()      {}
func (NopStats) LoginRateLimited() {}

// Handler wires the form-based auth and chat-management endpoints to
// identity/session/chat services.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.Store
	sessions *session.Service
	chats    chat.Store

	limiter  *LoginLimiter
	validate *validator.Validate
	stats    Stats

	dummyHash string
}

// NewHandler constructs the auth handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Service, chats chat.Store, stats Stats) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil || sessions == nil || chats == nil {
		return nil, errors.New("authapi: nil dependency")
	}
	if stats == nil {
		stats = NopStats{}
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		chats:    chats,
		limiter:  NewLoginLimiter(cfg.LoginMax, cfg.LoginWindow),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		stats:    stats,
	}

	// Dummy hash for timing-resistant login checks.
	if hash, err := identity.HashPassword("dummy-password-for-timing-only", identity.DefaultArgon2idParams()); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /register", h.handleRegister)
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.HandleFunc("POST /refresh", h.handleRefresh)
	mux.HandleFunc("POST /logout", h.handleLogout)
	mux.HandleFunc("POST /logout/all", h.handleLogoutAll)
	mux.HandleFunc("POST /chats/start", h.handleChatStart)
	mux.HandleFunc("GET /chats", h.handleChats)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	email, password, ok := h.parseCredentials(w, r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	if h.validate.Var(email, "required,email") != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed email")
		return
	}

	_, err := h.users.CreateUser(r.Context(), identity.CreateUserInput{
		Email:    email,
		Password: password,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusBadRequest, "email_taken", "email already registered")
		case identity.IsInvalidInput(err), errors.Is(err, identity.ErrPasswordTooShort), errors.Is(err, identity.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid email or password")
		default:
			h.log.Error("auth.register.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	http.Redirect(w, r, h.cfg.PostLogoutRedirect, http.StatusSeeOther)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()
	addr := clientIP(r, h.cfg.TrustProxy)

	// Every attempt counts against the window, including the ones rejected
	// below for bad input or bad credentials.
	if !h.limiter.Allow(addr, now) {
		h.stats.LoginRateLimited()
		h.log.Info("auth.login.rate_limited", "addr", addr)
		writeRateLimited(w, h.limiter.RetryAfter(addr, now))
		return
	}

	email, password, ok := h.parseCredentials(w, r)
	if !ok || h.validate.Var(email, "required,email") != nil {
		h.stats.LoginFailed()
		writeError(w, http.StatusBadRequest, "invalid_credentials", "invalid email or password")
		return
	}

	user, err := h.users.GetUserByEmail(ctx, email)
	if err != nil {
		// Timing resistance: perform a dummy verify when the user is missing.
		if h.dummyHash != "" {
			_, _ = identity.VerifyPassword(password, h.dummyHash)
		}
		h.stats.LoginFailed()
		writeError(w, http.StatusBadRequest, "invalid_credentials", "invalid email or password")
		return
	}

	okPw, err := identity.VerifyPassword(password, user.PasswordHash)
	if err != nil || !okPw {
		h.stats.LoginFailed()
		writeError(w, http.StatusBadRequest, "invalid_credentials", "invalid email or password")
		return
	}

	issued, err := h.sessions.IssueSession(ctx, now, user.ID, user.Email, h.device(r))
	if err != nil {
		h.log.Error("auth.login.issue_session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.stats.LoginSucceeded()
	h.setSessionCookies(w, issued, now)
	http.Redirect(w, r, h.cfg.PostLoginRedirect, http.StatusSeeOther)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()

	// Rejections leave the client's cookies untouched; only logout clears them.
	raw, ok := cookieValue(r, refreshTokenCookie)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_refresh", "missing refresh token")
		return
	}

	issued, err := h.sessions.Rotate(ctx, now, raw, h.device(r))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound),
			errors.Is(err, session.ErrExpired),
			errors.Is(err, session.ErrDeviceMismatch),
			errors.Is(err, session.ErrInvalidToken):
			h.log.Info("auth.refresh.reject", "err", err)
			writeError(w, http.StatusUnauthorized, "invalid_refresh", "refresh token not accepted")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	h.setSessionCookies(w, issued, now)
	http.Redirect(w, r, h.cfg.PostLoginRedirect, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	// Idempotent: a missing or already-revoked token still logs the client out.
	if raw, ok := cookieValue(r, refreshTokenCookie); ok {
		if err := h.sessions.Revoke(r.Context(), raw); err != nil {
			h.log.Error("auth.logout.revoke.fail", "err", err)
		}
	}

	h.clearSessionCookies(w)
	http.Redirect(w, r, h.cfg.PostLogoutRedirect, http.StatusSeeOther)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.sessions.RevokeAllForUser(r.Context(), user.ID); err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.clearSessionCookies(w)
	http.Redirect(w, r, h.cfg.PostLogoutRedirect, http.StatusSeeOther)
}

func (h *Handler) handleChatStart(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.parseForm(w, r); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}
	peerEmail := identity.NormalizeEmail(r.PostFormValue("email"))
	if h.validate.Var(peerEmail, "required,email") != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed email")
		return
	}

	peer, err := h.users.GetUserByEmail(r.Context(), peerEmail)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusBadRequest, "unknown_recipient", "no such user")
			return
		}
		h.log.Error("chat.start.lookup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	conv, err := h.chats.StartConversation(r.Context(), user.ID, peer.ID)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidPair) {
			writeError(w, http.StatusBadRequest, "invalid_request", "cannot start a chat with yourself")
			return
		}
		h.log.Error("chat.start.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	http.Redirect(w, r, "/messages?chat_id="+url.QueryEscape(conv.ID), http.StatusSeeOther)
}

func (h *Handler) handleChats(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	convs, err := h.chats.ListConversationsForUser(r.Context(), user.ID)
	if err != nil {
		h.log.Error("chat.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toConversationListResponse(convs))
}

// ---- helpers ----

// requireUser authenticates the access-token cookie and resolves the user.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (identity.User, bool) {
	raw, ok := cookieValue(r, accessTokenCookie)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return identity.User{}, false
	}

	claims, err := h.sessions.VerifyAccessToken(raw, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return identity.User{}, false
	}

	user, err := h.users.GetUserByEmail(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return identity.User{}, false
	}
	return user, true
}

func (h *Handler) parseCredentials(w http.ResponseWriter, r *http.Request) (email, password string, ok bool) {
	if err := h.parseForm(w, r); err != nil {
		return "", "", false
	}

	email = identity.NormalizeEmail(r.PostFormValue("email"))
	password = r.PostFormValue("password")
	if email == "" || strings.TrimSpace(password) == "" {
		return "", "", false
	}
	return email, password, true
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	return r.ParseForm()
}

func (h *Handler) device(r *http.Request) session.Device {
	return session.Device{
		UserAgent: strings.TrimSpace(r.UserAgent()),
		IP:        clientIP(r, h.cfg.TrustProxy),
	}
}
