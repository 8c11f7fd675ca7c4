// ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dalemusser/contactrelay/httputil"
)

// DefaultMessage is the 429 response text.
const DefaultMessage = "Too many requests, please try again later."

// Limiter is a token bucket. It is not safe for concurrent use on its own;
// KeyLimiter serializes access.
type Limiter struct {
	rate     float64   // tokens per second
	burst    int       // maximum bucket size
	tokens   float64   // current tokens
	lastTime time.Time // last token update
}

// New returns a full bucket refilled at rate tokens per second.
func New(rate float64, burst int, now time.Time) *Limiter {
	return &Limiter{
		rate:     rate,
		burst:    burst,
		tokens:   float64(burst),
		lastTime: now,
	}
}

func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.lastTime).Seconds()
	if elapsed > 0 {
		l.tokens = math.Min(float64(l.burst), l.tokens+elapsed*l.rate)
	}
	l.lastTime = now
}

// Allow consumes one token if available.
func (l *Limiter) Allow(now time.Time) bool {
	l.refill(now)
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// RetryAfter reports how long until the next token is available.
func (l *Limiter) RetryAfter(now time.Time) time.Duration {
	l.refill(now)
	if l.tokens >= 1 || l.rate <= 0 {
		return 0
	}
	return time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
}

// Store decides whether a request keyed by key may proceed. wait is the
// suggested Retry-After when it may not. A non-nil error means the store could
// not decide; the middleware then lets the request through.
type Store interface {
	Take(ctx context.Context, key string) (ok bool, wait time.Duration, err error)
}

// KeyLimiter keeps one Limiter per key (client IP). Entries idle longer than
// ttl are dropped by a background sweep that runs until Close.
type KeyLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rate     float64
	burst    int
	ttl      time.Duration
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

type entry struct {
	limiter  *Limiter
	lastSeen time.Time
}

// NewKeyLimiter starts a per-key limiter. Call Close to stop the sweep.
func NewKeyLimiter(rate float64, burst int, ttl time.Duration) *KeyLimiter {
	kl := newKeyLimiter(rate, burst, ttl, time.Now)
	go kl.sweep()
	return kl
}

func newKeyLimiter(rate float64, burst int, ttl time.Duration, now func() time.Time) *KeyLimiter {
	return &KeyLimiter{
		limiters: make(map[string]*entry),
		rate:     rate,
		burst:    burst,
		ttl:      ttl,
		now:      now,
		done:     make(chan struct{}),
	}
}

// Allow reports whether key may proceed and, if not, how long to wait.
func (kl *KeyLimiter) Allow(key string) (bool, time.Duration) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := kl.now()
	e, ok := kl.limiters[key]
	if !ok {
		e = &entry{limiter: New(kl.rate, kl.burst, now)}
		kl.limiters[key] = e
	}
	e.lastSeen = now

	if e.limiter.Allow(now) {
		return true, 0
	}
	return false, e.limiter.RetryAfter(now)
}

// Take implements Store. It never fails.
func (kl *KeyLimiter) Take(_ context.Context, key string) (bool, time.Duration, error) {
	ok, wait := kl.Allow(key)
	return ok, wait, nil
}

// Size returns the number of tracked keys.
func (kl *KeyLimiter) Size() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}

// Close stops the background sweep. It is safe to call more than once.
func (kl *KeyLimiter) Close() {
	kl.once.Do(func() { close(kl.done) })
}

func (kl *KeyLimiter) sweep() {
	ticker := time.NewTicker(kl.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-kl.done:
			return
		case <-ticker.C:
			kl.evictIdle()
		}
	}
}

func (kl *KeyLimiter) evictIdle() {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	now := kl.now()
	for key, e := range kl.limiters {
		if now.Sub(e.lastSeen) > kl.ttl {
			delete(kl.limiters, key)
		}
	}
}

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys by the host part of RemoteAddr. Behind a proxy, RemoteAddr is
// the proxy unless RealIP runs first (trust_proxy_headers); RealIP trusts
// client-supplied headers, so enable it only behind a proxy that rewrites them.
func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Config configures the rate limit middleware.
type Config struct {
	// PerMinute is the sustained request rate per key. <= 0 disables limiting.
	PerMinute int

	// Burst is the bucket size. Defaults to PerMinute.
	Burst int

	// KeyFunc defaults to IPKeyFunc.
	KeyFunc KeyFunc

	// TTL is how long idle keys are kept. Defaults to 10 minutes.
	TTL time.Duration

	// Message is the 429 error text. Defaults to DefaultMessage.
	Message string

	// OnLimited, if set, is called for every rejected request before the
	// 429 is written.
	OnLimited func(r *http.Request, key string)

	// OnError, if set, is called when the Store fails. The request is
	// allowed through.
	OnError func(r *http.Request, err error)
}

// Middleware returns the limiting middleware and the KeyLimiter behind it
// (nil when disabled). Rejected requests get 429 {"error": Message} with a
// Retry-After header in whole seconds.
func Middleware(cfg Config) (func(http.Handler) http.Handler, *KeyLimiter) {
	if cfg.PerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.PerMinute
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	limiter := NewKeyLimiter(float64(cfg.PerMinute)/60, cfg.Burst, cfg.TTL)
	return MiddlewareWithLimiter(limiter, cfg), limiter
}

// MiddlewareWithLimiter wraps handlers with a caller-owned Store. Only
// KeyFunc, Message, OnLimited and OnError are read from cfg.
func MiddlewareWithLimiter(store Store, cfg Config) func(http.Handler) http.Handler {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPKeyFunc
	}
	if cfg.Message == "" {
		cfg.Message = DefaultMessage
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)
			ok, wait, err := store.Take(r.Context(), key)
			if err != nil {
				if cfg.OnError != nil {
					cfg.OnError(r, err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.OnLimited != nil {
				cfg.OnLimited(r, key)
			}
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			httputil.WriteError(w, http.StatusTooManyRequests, cfg.Message)
		})
	}
}
