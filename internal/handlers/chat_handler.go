package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/koinonia-app/QueueChat/internal/errs"
	"github.com/koinonia-app/QueueChat/internal/services"
)

// ChatHandler 群聊处理器
type ChatHandler struct {
	chatService *services.ChatService
}

// NewChatHandler 创建群聊处理器实例
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ListMyChats 获取我的群聊列表
func (h *ChatHandler) ListMyChats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	chats, err := h.chatService.ListMyChats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    chats,
	})
}

// GetChatMembers 获取群聊成员
func (h *ChatHandler) GetChatMembers(c *gin.Context) {
	chatID := c.Param("chat_id")

	members, err := h.chatService.GetChatMembers(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    members,
	})
}

// PostMessage 发送消息
func (h *ChatHandler) PostMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	chatID := c.Param("chat_id")

	type PostMessageRequest struct {
		Body string `json:"body" binding:"required"`
	}
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", errs.ErrInvalidArgument, err.Error()))
		return
	}

	msg, err := h.chatService.PostMessage(c.Request.Context(), chatID, userID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    msg,
	})
}

// ListMessages 获取消息列表
func (h *ChatHandler) ListMessages(c *gin.Context) {
	chatID := c.Param("chat_id")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := h.chatService.ListMessages(c.Request.Context(), chatID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    messages,
	})
}
