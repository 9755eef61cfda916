package http

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/spec-kit/auth-gate/pkg/util"
)

const (
	visitorIdleTTL = 3 * time.Minute
	sweepInterval  = time.Minute
)

// RateLimiter throttles credential endpoints per client IP.
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute requests per client with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limit:    limit,
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Handler rejects requests over the limit with 429.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowed, retryAfter := rl.allow(c.IP())
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return apperrors.NewTooManyRequests(retryAfter)
		}
		return c.Next()
	}
}

func (rl *RateLimiter) allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > sweepInterval {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorIdleTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now

	if v.limiter.AllowN(now, 1) {
		return true, 0
	}
	reservation := v.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	reservation.CancelAt(now)
	return false, int(math.Ceil(delay.Seconds()))
}
