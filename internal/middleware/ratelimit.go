package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/httputil"
)

type RateLimiterConfig struct {
	RPS   float64
	Burst int
	// Idle is how long an unused client limiter is kept.
	Idle time.Duration
}

// RateLimiter keeps one token bucket per client. Authenticated requests are
// keyed by user, anonymous ones by IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	idle := config.Idle
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: cache.New(idle, idle),
		limit:    rate.Limit(config.RPS),
		burst:    burst,
		idle:     idle,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.limiters.Get(key); ok {
		l := v.(*rate.Limiter)
		rl.limiters.Set(key, l, rl.idle)
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.Set(key, l, rl.idle)
	return l
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if uid := c.GetString(ContextUserID); uid != "" {
			key = "user:" + uid
		}

		if !rl.limiter(key).Allow() {
			httputil.RespondWithError(c, errors.QuotaExceeded("rate limit exceeded"))
			return
		}
		c.Next()
	}
}
