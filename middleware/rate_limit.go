package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/siteworks-dev/siteworks/pkg/logger"
)

// RateLimiter counts requests per client IP inside a fixed window. BOQ
// uploads are expensive to process, so the limit applies to every route
// rather than uploads alone.
type RateLimiter struct {
	mu          sync.Mutex
	hits        map[string]int
	windowStart time.Time
	limit       int
	window      time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:        make(map[string]int),
		windowStart: time.Now(),
		limit:       limit,
		window:      window,
	}
}

// allow records one hit for the client and reports whether it is still
// within the limit. All counters reset together when the window rolls.
func (rl *RateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.windowStart) > rl.window {
		rl.hits = make(map[string]int)
		rl.windowStart = time.Now()
	}

	if rl.hits[clientIP] >= rl.limit {
		return false
	}
	rl.hits[clientIP]++
	return true
}

// RateLimit rejects clients exceeding limit requests per window with 429.
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	rl := NewRateLimiter(limit, window)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !rl.allow(clientIP) {
			logger.Warn(c.Request.Context(), "rate limit exceeded",
				"client_ip", clientIP,
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
