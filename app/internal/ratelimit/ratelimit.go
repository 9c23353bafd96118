package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Limiter is a per-key token bucket, usually keyed by client IP.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	perMin   float64
	capacity float64
	message  string
	now      func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// Config for creating a new rate limiter
type Config struct {
	TokensPerMinute int    // refill rate
	MaxTokens       int    // burst size; defaults to TokensPerMinute
	ErrorMessage    string // body of the 429 response
}

// New creates a limiter and starts its idle-bucket sweeper. Call Stop when done.
func New(cfg Config) *Limiter {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = cfg.TokensPerMinute
	}
	if cfg.ErrorMessage == "" {
		cfg.ErrorMessage = "Too many requests. Please slow down."
	}

	l := &Limiter{
		buckets:  make(map[string]*bucket),
		perMin:   float64(cfg.TokensPerMinute),
		capacity: float64(cfg.MaxTokens),
		message:  cfg.ErrorMessage,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.sweep(5*time.Minute, 10*time.Minute)
	return l
}

func (l *Limiter) sweep(every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.mu.Lock()
			now := l.now()
			for key, b := range l.buckets {
				if now.Sub(b.seen) > idle {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Stop ends the sweeper. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// refill must be called with mu held.
func (l *Limiter) refill(key string) *bucket {
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, seen: now}
		l.buckets[key] = b
		return b
	}
	b.tokens = math.Min(l.capacity, b.tokens+now.Sub(b.seen).Minutes()*l.perMin)
	b.seen = now
	return b
}

// Allow takes one token for key and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Remaining returns the whole tokens left for key.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int(l.refill(key).tokens)
}

// retryAfter is the wait until key earns its next token.
func (l *Limiter) retryAfter(key string) time.Duration {
	if l.perMin <= 0 {
		return time.Minute
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	missing := 1 - l.refill(key).tokens
	return time.Duration(missing / l.perMin * float64(time.Minute))
}

// Middleware rejects requests over the limit with 429 and a JSON error body.
// Allowed requests carry the tokens left in X-RateLimit-Remaining.
func (l *Limiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !l.Allow(ip) {
			secs := int(math.Ceil(l.retryAfter(ip).Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": l.message})
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(l.Remaining(ip)))
		next(w, r)
	}
}

// ClientIP returns the first X-Forwarded-For hop, or the remote address host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
