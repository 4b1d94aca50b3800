package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/koinonia-app/QueueChat/internal/pkg/ratelimit"
)

// RateLimitMiddleware 按调用方限流中间件
// Keys on the authenticated user when present, otherwise on the client IP.
func RateLimitMiddleware(limiter ratelimit.Limiter, perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if userID, exists := c.Get("userID"); exists {
			key = fmt.Sprintf("user:%v", userID)
		}

		allowed, err := limiter.Allow(c.Request.Context(), key, perMinute, time.Minute)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "rate limit check failed",
			})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please slow down",
			})
			return
		}
		c.Next()
	}
}
