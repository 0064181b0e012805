package authapi

import (
	"testing"
	"time"
)

func TestLoginLimiter_WindowEnforced(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLoginLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !l.Allow("10.0.0.1", now.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("attempt %d unexpectedly blocked", i+1)
		}
	}

	if l.Allow("10.0.0.1", now.Add(5*time.Second)) {
		t.Fatalf("sixth attempt inside window should be blocked")
	}

	// Other addresses are unaffected.
	if !l.Allow("10.0.0.2", now.Add(5*time.Second)) {
		t.Fatalf("independent address blocked")
	}
}

func TestLoginLimiter_BlockedAttemptsStillCount(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLoginLimiter(2, time.Minute)

	l.Allow("10.0.0.1", now)
	l.Allow("10.0.0.1", now.Add(time.Second))

	// Hammering while blocked keeps pushing the window forward.
	for i := 2; i < 10; i++ {
		if l.Allow("10.0.0.1", now.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("attempt %d should be blocked", i+1)
		}
	}

	// 61s after the first attempt, the window is still saturated by the
	// recorded blocked attempts.
	if l.Allow("10.0.0.1", now.Add(61*time.Second)) {
		t.Fatalf("recorded blocked attempts should keep the address throttled")
	}
}

func TestLoginLimiter_RecoversAfterQuiet(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLoginLimiter(5, time.Minute)

	for i := 0; i < 6; i++ {
		l.Allow("10.0.0.1", now.Add(time.Duration(i)*time.Second))
	}

	// A full window of silence clears the slate.
	if !l.Allow("10.0.0.1", now.Add(66*time.Second)) {
		t.Fatalf("attempt after a quiet window should be allowed")
	}
}

func TestLoginLimiter_RetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLoginLimiter(2, time.Minute)

	l.Allow("10.0.0.1", now)
	l.Allow("10.0.0.1", now.Add(10*time.Second))

	ra := l.RetryAfter("10.0.0.1", now.Add(20*time.Second))
	if ra <= 0 || ra > time.Minute {
		t.Fatalf("retry-after out of range: %v", ra)
	}

	if got := l.RetryAfter("10.0.0.9", now); got != 0 {
		t.Fatalf("unknown address retry-after = %v, want 0", got)
	}
}
