package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client key.
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewRateLimiter creates a limiter refilling requestsPerMinute tokens a minute.
// A non-positive rate disables limiting.
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether key may make a request now.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// retryAfter is the whole number of seconds until one token refills.
func (l *RateLimiter) retryAfter() int {
	if l.limit == rate.Inf || l.limit <= 0 {
		return 1
	}
	secs := int(math.Ceil(1 / float64(l.limit)))
	if secs < 1 {
		return 1
	}
	return secs
}

// RateLimit returns middleware that limits requests per API key, falling back to the client IP
// when no key has been authenticated.
func RateLimit(l *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if apiKey := GetAPIKey(c); apiKey != nil {
			key = apiKey.Prefix
		}

		if !l.Allow(key) {
			c.Header("Retry-After", strconv.Itoa(l.retryAfter()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   gin.H{"code": "RATE_LIMITED", "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}
