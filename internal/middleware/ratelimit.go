package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client. Idle buckets are swept
// on access once they have been unused for ttl.
type RateLimiter struct {
	clients   map[string]*limiterEntry
	mu        sync.Mutex
	rate      rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(perMinute, burst int, ttl time.Duration) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		clients: make(map[string]*limiterEntry),
		rate:    rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.ttl {
		for k, e := range rl.clients {
			if now.Sub(e.lastSeen) > rl.ttl {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	e, ok := rl.clients[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Middleware keys buckets by caller IP. Client codes are not used since a
// caller can mint as many sessions as it likes.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow("ip:" + c.RealIP()) {
				c.Response().Header().Set("Retry-After", "60")
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests. Slow down and try again shortly.")
			}
			return next(c)
		}
	}
}
