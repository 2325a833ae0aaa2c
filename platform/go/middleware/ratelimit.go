package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/marmoreal/stonecms/platform/go/problem"
)

// RateLimitConfig configures a per-client token bucket.
type RateLimitConfig struct {
	// Rate is the sustained number of requests per second allowed for one client.
	Rate float64
	// Burst is the bucket size.
	Burst int
	// MaxClients bounds how many client buckets are tracked at once.
	MaxClients int
	// IdleTTL drops a client bucket after this long without requests.
	IdleTTL time.Duration
	// Key derives the client identity; defaults to ClientIP.
	Key func(r *http.Request) string
}

// RateLimiter tracks one limiter per client key.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	key      func(r *http.Request) string
	limiters *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter returns a limiter with defaults filled in.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 0.2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 10000
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.Key == nil {
		cfg.Key = ClientIP
	}

	return &RateLimiter{
		limit:    rate.Limit(cfg.Rate),
		burst:    cfg.Burst,
		key:      cfg.Key,
		limiters: expirable.NewLRU[string, *rate.Limiter](cfg.MaxClients, nil, cfg.IdleTTL),
	}
}

// Allow consumes one token for key.
func (l *RateLimiter) Allow(key string) bool {
	return l.limiterFor(key).Allow()
}

func (l *RateLimiter) limiterFor(key string) *rate.Limiter {
	if limiter, ok := l.limiters.Get(key); ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Add(key, limiter)
	return limiter
}

// Middleware rejects requests over the limit with a 429 problem document.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(l.key(r)) {
			retryAfter := int(math.Ceil(1 / float64(l.limit)))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			problem.Write(w, problem.Build("Too Many Requests", "too many requests, try again later", problem.TypeRateLimited, http.StatusTooManyRequests, nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}
