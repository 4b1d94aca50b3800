package routers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/koinonia-app/QueueChat/config"
	"github.com/koinonia-app/QueueChat/internal/handlers"
	"github.com/koinonia-app/QueueChat/internal/pkg/ratelimit"
	"github.com/koinonia-app/QueueChat/pkg/middlewares"
)

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine, cfg *config.Config,
	queueHandler *handlers.QueueHandler,
	chatHandler *handlers.ChatHandler,
	limiter ratelimit.Limiter,
) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Trace-ID"}
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.TraceMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"Status": "OK",
		})
	})

	RegisterQueueRoutes(r, cfg, queueHandler, limiter)
	RegisterChatRoutes(r, cfg, chatHandler, limiter)
}

// RegisterQueueRoutes 队列相关路由
func RegisterQueueRoutes(r *gin.Engine, cfg *config.Config, queueHandler *handlers.QueueHandler, limiter ratelimit.Limiter) {
	queueGroup := r.Group("/api/v1/queues")
	queueGroup.Use(middlewares.AuthMiddleware())
	if limiter != nil {
		queueGroup.Use(middlewares.RateLimitMiddleware(limiter, cfg.RateLimit.PerMinute))
	}
	{
		queueGroup.POST("", queueHandler.CreateQueue)              // 创建队列
		queueGroup.GET("", queueHandler.ListWaitingQueues)         // 等待中的队列列表
		queueGroup.POST("/:queue_id/join", queueHandler.Join)      // 加入队列
		queueGroup.POST("/:queue_id/leave", queueHandler.Leave)    // 退出队列
		queueGroup.POST("/:queue_id/cancel", queueHandler.Cancel)  // 取消队列（创建者）
	}
}

// RegisterChatRoutes 群聊相关路由
func RegisterChatRoutes(r *gin.Engine, cfg *config.Config, chatHandler *handlers.ChatHandler, limiter ratelimit.Limiter) {
	chatGroup := r.Group("/api/v1/chats")
	chatGroup.Use(middlewares.AuthMiddleware())
	if limiter != nil {
		chatGroup.Use(middlewares.RateLimitMiddleware(limiter, cfg.RateLimit.PerMinute))
	}
	{
		chatGroup.GET("/mine", chatHandler.ListMyChats)                 // 我的群聊列表
		chatGroup.GET("/:chat_id/members", chatHandler.GetChatMembers)  // 群聊成员
		chatGroup.POST("/:chat_id/messages", chatHandler.PostMessage)   // 发送消息
		chatGroup.GET("/:chat_id/messages", chatHandler.ListMessages)   // 消息列表
	}
}
