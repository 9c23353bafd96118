package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, perMin, burst int) (*Limiter, *fakeClock) {
	t.Helper()
	l := New(Config{TokensPerMinute: perMin, MaxTokens: burst, ErrorMessage: "slow down"})
	t.Cleanup(l.Stop)
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l.now = clk.now
	return l, clk
}

func TestNew_DefaultMaxTokens(t *testing.T) {
	l := New(Config{TokensPerMinute: 10})
	defer l.Stop()

	if l.capacity != 10 {
		t.Errorf("expected capacity=10, got %v", l.capacity)
	}
	if l.message == "" {
		t.Error("expected a default error message")
	}
}

func TestAllow_WithinLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 10, 10)
	for i := 0; i < 10; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
}

func TestAllow_ExceedsLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 5, 5)
	for i := 0; i < 5; i++ {
		l.Allow("1.2.3.4")
	}
	if l.Allow("1.2.3.4") {
		t.Error("request should be denied after exceeding limit")
	}
}

func TestAllow_Refills(t *testing.T) {
	l, clk := newTestLimiter(t, 6, 1)
	if !l.Allow("k") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("burst of 1 should be exhausted")
	}

	clk.advance(10 * time.Second) // 6/min is one token per 10s
	if !l.Allow("k") {
		t.Error("token should have been refilled")
	}
}

func TestAllow_RefillCappedAtBurst(t *testing.T) {
	l, clk := newTestLimiter(t, 60, 3)
	l.Allow("k")
	clk.advance(time.Hour)
	if got := l.Remaining("k"); got != 3 {
		t.Errorf("remaining = %d, want 3", got)
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 1)
	l.Allow("a")
	if !l.Allow("b") {
		t.Error("b should have its own bucket")
	}
}

func TestStop_Idempotent(t *testing.T) {
	l := New(Config{TokensPerMinute: 1})
	l.Stop()
	l.Stop()
}

// --- Middleware ---

func TestMiddleware_Returns429(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 1)
	h := l.Middleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rr := httptest.NewRecorder()
	h(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if !strings.Contains(rr.Body.String(), `"error":"slow down"`) {
		t.Errorf("unexpected body: %s", rr.Body.String())
	}
}

func TestMiddleware_RemainingHeader(t *testing.T) {
	l, _ := newTestLimiter(t, 3, 3)
	h := l.Middleware(func(w http.ResponseWriter, r *http.Request) {})
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)

	for _, want := range []string{"2", "1", "0"} {
		rr := httptest.NewRecorder()
		h(rr, req)
		if got := rr.Header().Get("X-RateLimit-Remaining"); got != want {
			t.Errorf("X-RateLimit-Remaining = %q, want %q", got, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Errorf("ClientIP = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Errorf("ClientIP with XFF = %q", got)
	}
}
