package rpc

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RateLimit configures one bucket's refill rate and burst.
type RateLimit struct {
	RatePerSecond float64
	Burst         int
}

type rateEntry struct {
	limiter *rate.Limiter
	lastHit time.Time
}

// RateLimiter caps requests per authenticated authority (the JWT subject),
// not per IP: every caller of this API is an identified keeper, so the
// bucket key is identity rather than network origin, using a
// lazy-per-key-limiter idiom over golang.org/x/time/rate.
type RateLimiter struct {
	mu       sync.Mutex
	limits   map[string]RateLimit
	visitors map[string]*rateEntry
	now      func() time.Time
}

// NewRateLimiter builds a limiter with one RateLimit per route key (the
// chi route pattern, e.g. "POST /v1/orders").
func NewRateLimiter(limits map[string]RateLimit) *RateLimiter {
	return &RateLimiter{
		limits:   limits,
		visitors: make(map[string]*rateEntry),
		now:      time.Now,
	}
}

func (r *RateLimiter) obtain(key string, cfg RateLimit) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.visitors[key]; ok {
		e.lastHit = r.now()
		return e.limiter
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	r.visitors[key] = &rateEntry{limiter: limiter, lastHit: r.now()}
	return limiter
}

// Middleware enforces routeKey's RateLimit keyed by the caller's JWT
// subject. A routeKey absent from limits passes through unthrottled.
func (r *RateLimiter) Middleware(routeKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			limit, ok := r.limits[routeKey]
			if !ok {
				next.ServeHTTP(w, req)
				return
			}
			claims, err := FromContext(req.Context())
			subject := req.RemoteAddr
			if err == nil {
				subject = claims.Subject
			}
			limiter := r.obtain(routeKey+"|"+subject, limit)
			if !limiter.AllowN(r.now(), 1) {
				recordOutcome(routeKey, "rate_limited")
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", errRateLimited, "")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

var errRateLimited = rateLimitedErr{}

type rateLimitedErr struct{}

func (rateLimitedErr) Error() string { return "rpc: rate limit exceeded for this authority" }

// IdempotencyStore tracks the response previously returned for an
// Idempotency-Key header on create_* entry points, so a keeper's retried
// POST after a dropped connection doesn't double-submit an order or
// action. Keys are minted client-side with google/uuid; the store here
// only remembers which keys it has already served and the status/body
// returned the first time.
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotentResult
	ttl     time.Duration
	now     func() time.Time
}

type idempotentResult struct {
	status  int
	body    []byte
	expires time.Time
}

// NewIdempotencyStore builds a store that forgets keys after ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &IdempotencyStore{entries: make(map[string]idempotentResult), ttl: ttl, now: time.Now}
}

func (s *IdempotencyStore) lookup(key string) (idempotentResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.entries[key]
	if !ok || s.now().After(res.expires) {
		return idempotentResult{}, false
	}
	return res, true
}

func (s *IdempotencyStore) remember(key string, status int, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idempotentResult{status: status, body: body, expires: s.now().Add(s.ttl)}
}

// idempotentRecorder buffers a handler's response so it can be stored
// verbatim for replay on a repeated Idempotency-Key.
type idempotentRecorder struct {
	http.ResponseWriter
	status int
	body   []byte
}

func (w *idempotentRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *idempotentRecorder) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return w.ResponseWriter.Write(b)
}

// Idempotent replays a prior response for a repeated Idempotency-Key header
// instead of re-running next, so a retried create_order/create_deposit/
// create_withdrawal/create_shift call cannot double-create state. A
// missing header disables idempotency checking for that call; absent
// headers fall through rather than error.
func (s *IdempotencyStore) Idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := uuid.Parse(key); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", errBadIdempotencyKey, "")
			return
		}
		if cached, ok := s.lookup(key); ok {
			w.Header().Set("Idempotency-Replayed", "true")
			w.WriteHeader(cached.status)
			_, _ = w.Write(cached.body)
			return
		}
		rec := &idempotentRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.remember(key, rec.status, rec.body)
	})
}

var errBadIdempotencyKey = badIdempotencyKeyErr{}

type badIdempotencyKeyErr struct{}

func (badIdempotencyKeyErr) Error() string { return "rpc: Idempotency-Key must be a UUID" }
