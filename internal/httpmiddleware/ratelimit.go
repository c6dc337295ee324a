package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter throttles per-client request rates with a token bucket:
// burst tokens available up front, refilled continuously at a per-minute
// rate. State is in-memory; a multi-instance deployment would move it
// to Redis.
type RateLimiter struct {
	burst     int
	perMinute int

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a limiter allowing burst immediate requests and
// perMinute sustained. A non-positive burst falls back to perMinute.
func NewRateLimiter(burst, perMinute int) *RateLimiter {
	if burst <= 0 {
		burst = perMinute
	}
	return &RateLimiter{
		burst:     burst,
		perMinute: perMinute,
		clients:   make(map[string]*clientBucket),
	}
}

// Gin returns a middleware enforcing the limit per client IP. Health and
// metrics probes are never throttled.
func (l *RateLimiter) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/healthz", "/metrics":
			c.Next()
			return
		}
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		if !l.allow(key, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.clients[key]
	if !ok {
		l.clients[key] = &clientBucket{tokens: float64(l.burst) - 1, last: now}
		return true
	}
	b.tokens += now.Sub(b.last).Minutes() * float64(l.perMinute)
	if b.tokens > float64(l.burst) {
		b.tokens = float64(l.burst)
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
