package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter enforces a minimum interval between requests per client.
// Process-scoped; entries older than ten intervals are evicted so the map
// stays bounded.
type RateLimiter struct {
	clients map[string]time.Time
	mu      sync.Mutex
	limit   time.Duration
}

func NewRateLimiter(limit time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]time.Time),
		limit:   limit,
	}
}

func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetHeader("X-Client-ID")
		if clientID == "" {
			clientID = c.ClientIP()
		}
		r.mu.Lock()
		now := time.Now()
		last, exists := r.clients[clientID]
		if exists && now.Sub(last) < r.limit {
			r.mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}
		r.clients[clientID] = now
		for id, seen := range r.clients {
			if now.Sub(seen) > 10*r.limit {
				delete(r.clients, id)
			}
		}
		r.mu.Unlock()
		c.Next()
	}
}
