package middleware

import (
	"sync"
	"time"

	"unicarbon-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimit is a per-client token bucket configuration.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one limiter per client IP. Idle visitors are evicted on access.
type RateLimiter struct {
	limit    RateLimit
	idle     time.Duration
	mu       sync.Mutex
	visitors map[string]*visitor
	clockNow func() time.Time
}

func NewRateLimiter(limit RateLimit) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		idle:     10 * time.Minute,
		visitors: make(map[string]*visitor),
		clockNow: time.Now,
	}
}

// Handler rejects requests over the limit with 429.
func (r *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !r.Allow(c.IP()) {
			return response.Error(c, "Too many requests", fiber.StatusTooManyRequests, nil)
		}
		return c.Next()
	}
}

// Allow reports whether the client identified by id may proceed.
func (r *RateLimiter) Allow(id string) bool {
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range r.visitors {
		if now.Sub(v.lastSeen) > r.idle {
			delete(r.visitors, k)
		}
	}
	v, ok := r.visitors[id]
	if !ok {
		perSecond := r.limit.RequestsPerMinute / 60.0
		if perSecond <= 0 {
			perSecond = 1
		}
		burst := r.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
		r.visitors[id] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}
