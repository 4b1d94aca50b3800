package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/koinonia-app/QueueChat/internal/errs"
	"github.com/koinonia-app/QueueChat/internal/services"
)

// QueueHandler 队列处理器
type QueueHandler struct {
	matchmaker *services.MatchmakerService
}

// NewQueueHandler 创建队列处理器实例
func NewQueueHandler(matchmaker *services.MatchmakerService) *QueueHandler {
	return &QueueHandler{matchmaker: matchmaker}
}

// CreateQueue 创建队列
func (h *QueueHandler) CreateQueue(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", errs.ErrInvalidArgument, err.Error()))
		return
	}

	queue, err := h.matchmaker.CreateQueue(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    queue,
	})
}

// ListWaitingQueues 获取等待中的队列列表
func (h *QueueHandler) ListWaitingQueues(c *gin.Context) {
	queues, err := h.matchmaker.ListWaitingQueues(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    queues,
	})
}

// Join 加入队列
func (h *QueueHandler) Join(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	queueID := c.Param("queue_id")

	if err := h.matchmaker.Join(c.Request.Context(), queueID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// Leave 退出队列
func (h *QueueHandler) Leave(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	queueID := c.Param("queue_id")

	if err := h.matchmaker.Leave(c.Request.Context(), queueID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}

// Cancel 取消队列（仅创建者）
func (h *QueueHandler) Cancel(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	queueID := c.Param("queue_id")

	if err := h.matchmaker.Cancel(c.Request.Context(), queueID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
	})
}
