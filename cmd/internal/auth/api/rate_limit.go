package authapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// LoginLimiter is a per-client-address sliding-window limiter for login
// attempts.
//
// Unlike a quota on failures, every attempt counts: success does not reset
// the window, so a client cannot probe passwords at full speed by mixing in
// valid logins.
type LoginLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewLoginLimiter constructs a limiter with safe defaults when inputs are invalid.
func NewLoginLimiter(limit int, window time.Duration) *LoginLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &LoginLimiter{
		attempts: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow records an attempt from addr at time "now" and reports whether the
// attempt should be processed. The attempt is recorded either way.
func (l *LoginLimiter) Allow(addr string, now time.Time) bool {
	if l == nil || addr == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cut := now.Add(-l.window)
	dst := l.attempts[addr][:0]
	for _, t := range l.attempts[addr] {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}

	ok := len(dst) < l.limit
	l.attempts[addr] = append(dst, now)
	return ok
}

// RetryAfter returns how long addr must stay quiet before an attempt can
// succeed again.
func (l *LoginLimiter) RetryAfter(addr string, now time.Time) time.Duration {
	if l == nil || addr == "" {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	window := l.attempts[addr]
	if len(window) < l.limit {
		return 0
	}

	// The oldest in-window attempt must age out first.
	oldest := window[len(window)-l.limit]
	d := oldest.Add(l.window).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int64(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
