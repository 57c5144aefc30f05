package middlewares

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contractflow/proposals_backend/utils"
)

// RateLimitMiddleware applies a fixed-window limit keyed by client IP.
// The limiter comes from a provider because Redis connects after the
// listener is already up; a nil limiter passes requests through.
func RateLimitMiddleware(provider func() *utils.RateLimiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		limiter := provider()
		if limiter == nil {
			c.Next()
			return
		}

		key := scope + ":" + c.ClientIP()
		result := limiter.Allow(c.Request.Context(), key)

		c.Writer.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
		c.Writer.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
		if !result.Ok {
			retryAfter := int(result.ResetAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Writer.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
