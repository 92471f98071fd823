package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds rate limiter configuration
type RateLimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	CleanupInterval   time.Duration // How often idle buckets are swept
	TTL               time.Duration // How long an idle bucket is kept
}

func (c RateLimiterConfig) withDefaults() RateLimiterConfig {
	if c.BurstSize < 1 {
		c.BurstSize = 1
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	return c
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per request key.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
	ttl     time.Duration
	keyOf   func(*http.Request) string
	done    chan struct{}
	once    sync.Once
}

// NewRateLimiter limits requests per client IP.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return newRateLimiter(cfg, func(r *http.Request) string {
		return "ip:" + getClientIP(r)
	})
}

// NewCallerRateLimiter limits requests per authenticated employee, falling
// back to the client IP. Its middleware must run after JWTMiddleware.
func NewCallerRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return newRateLimiter(cfg, func(r *http.Request) string {
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			return "employee:" + strconv.FormatInt(claims.EmployeeID, 10)
		}
		return "ip:" + getClientIP(r)
	})
}

func newRateLimiter(cfg RateLimiterConfig, keyOf func(*http.Request) string) *RateLimiter {
	cfg = cfg.withDefaults()
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.BurstSize,
		ttl:     cfg.TTL,
		keyOf:   keyOf,
		done:    make(chan struct{}),
	}
	go rl.sweepEvery(cfg.CleanupInterval)
	return rl
}

// Allow takes a token for key. When none is left it reports how long until
// one is.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, delay
}

// Middleware rejects requests over the limit with 429 and a Retry-After hint.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, wait := rl.Allow(rl.keyOf(r))
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.", "RATE_LIMITED")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stop ends the background sweep.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

// sweep drops buckets idle for longer than the TTL.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.ttl {
			delete(rl.buckets, key)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func retryAfterSeconds(wait time.Duration) int {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// getClientIP extracts the client IP, preferring the first X-Forwarded-For
// hop, then X-Real-IP, then the connection address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip, _, err := net.SplitHostPort(first); err == nil {
			return ip
		}
		return first
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
