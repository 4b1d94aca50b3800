package middlewares

import (
	"github.com/gin-gonic/gin"

	logger "github.com/koinonia-app/QueueChat/middleware/log"
)

// TraceMiddleware puts a trace ID into the request context so every log
// line for the request correlates. An incoming X-Trace-ID is honored;
// otherwise a new one is generated.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		ctx := logger.WithTraceID(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", logger.GetTraceID(ctx))
		c.Next()
	}
}
