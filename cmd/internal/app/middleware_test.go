package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLogging_PassThrough(t *testing.T) {
	t.Parallel()

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), testLogger())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/anything", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rr.Code)
	}
	if rr.Body.String() != "short and stout" {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestLoggingResponseWriter_PreservesOptionalInterfaces(t *testing.T) {
	t.Parallel()

	lrw := &loggingResponseWriter{ResponseWriter: httptest.NewRecorder()}

	// Websocket upgrades need these assertions to keep working through the wrapper.
	var w http.ResponseWriter = lrw
	if _, ok := w.(http.Hijacker); !ok {
		t.Fatalf("wrapper must expose Hijacker")
	}
	if _, ok := w.(http.Flusher); !ok {
		t.Fatalf("wrapper must expose Flusher")
	}

	// Flush against a non-flusher base must be a no-op, not a panic.
	lrw.Flush()

	if lrw.Unwrap() == nil {
		t.Fatalf("Unwrap returned nil")
	}
}
