package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/koinonia-app/QueueChat/internal/errs"
	"github.com/koinonia-app/QueueChat/internal/identity"
	"github.com/koinonia-app/QueueChat/internal/models"
	"github.com/koinonia-app/QueueChat/internal/notifier"
	"github.com/koinonia-app/QueueChat/internal/pkg/snowflake"
	"github.com/koinonia-app/QueueChat/internal/repositories"
	logger "github.com/koinonia-app/QueueChat/middleware/log"
)

const maxMessageLength = 2000

// ChatService 群聊服务
// Read/append surface over realized chats. The matchmaker creates chats;
// this service only lists them, resolves their members and appends to their
// message logs.
type ChatService struct {
	chats      repositories.ChatStore
	ids        *snowflake.Generator
	identity   identity.Provider
	dispatcher *notifier.Dispatcher
	logger     *logger.Logger
}

// NewChatService 创建群聊服务实例
func NewChatService(chats repositories.ChatStore, ids *snowflake.Generator, provider identity.Provider, dispatcher *notifier.Dispatcher, log *logger.Logger) *ChatService {
	return &ChatService{
		chats:      chats,
		ids:        ids,
		identity:   provider,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// ChatDTO 群聊数据传输对象
type ChatDTO struct {
	ID          string    `json:"id"`
	QueueID     string    `json:"queue_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Intention   string    `json:"intention"`
	MemberCount int       `json:"member_count"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func chatDTO(c *models.Chat) *ChatDTO {
	return &ChatDTO{
		ID:          c.ID,
		QueueID:     c.QueueID,
		Title:       c.Title,
		Description: c.Description,
		Intention:   c.Intention,
		MemberCount: c.MemberCount,
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt,
	}
}

// MessageDTO 消息数据传输对象
type MessageDTO struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  uint      `json:"sender_id"`
	Body      string    `json:"body"`
	MsgType   string    `json:"msg_type"`
	CreatedAt time.Time `json:"created_at"`
}

func messageDTO(m *models.Message) *MessageDTO {
	return &MessageDTO{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		MsgType:   m.MsgType,
		CreatedAt: m.CreatedAt,
	}
}

// MessageNewEvent is the payload fanned out to the other members when a
// message is posted.
type MessageNewEvent struct {
	ChatID    string `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	SenderID  uint   `json:"sender_id"`
	Body      string `json:"body"`
}

// ListMyChats 获取用户所在的所有群聊
func (s *ChatService) ListMyChats(ctx context.Context, userID uint) ([]ChatDTO, error) {
	chats, err := s.chats.ListUserChats(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ChatDTO, 0, len(chats))
	for i := range chats {
		out = append(out, *chatDTO(&chats[i]))
	}
	return out, nil
}

// GetChatMembers 获取群聊成员资料
func (s *ChatService) GetChatMembers(ctx context.Context, chatID string) ([]identity.Profile, error) {
	if _, err := s.chats.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	members, err := s.chats.ListChatMemberships(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return s.identity.ResolveBatch(ctx, ids)
}

// PostMessage 向群聊发送消息
// The sender must hold a membership pointing at the chat; non-members get
// Forbidden. Fan-out to the other members is fire-and-forget and cannot
// undo the already committed append.
func (s *ChatService) PostMessage(ctx context.Context, chatID string, senderID uint, body string) (*MessageDTO, error) {
	if body == "" || len(body) > maxMessageLength {
		return nil, fmt.Errorf("%w: message body length invalid", errs.ErrInvalidArgument)
	}

	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.Status != models.ChatActive {
		return nil, errs.ErrAlreadyClosed
	}
	if _, err := s.chats.GetChatMembership(ctx, chatID, senderID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrForbidden
		}
		return nil, err
	}

	id, err := s.ids.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate message id: %w", err)
	}
	msg := &models.Message{
		ID:        id,
		ChatID:    chatID,
		SenderID:  senderID,
		Body:      body,
		MsgType:   "text",
		CreatedAt: time.Now(),
	}
	if err := s.chats.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	members, err := s.chats.ListChatMemberships(ctx, chatID)
	if err != nil {
		// The message is already durable; failing the fan-out prep must not
		// fail the post.
		s.logger.WarnContext(ctx, "failed to load members for fan-out",
			zap.String("chat_id", chatID),
			zap.Error(err),
		)
		return messageDTO(msg), nil
	}
	recipients := make([]uint, 0, len(members))
	for _, m := range members {
		if m.UserID != senderID {
			recipients = append(recipients, m.UserID)
		}
	}
	s.dispatcher.Fanout(ctx, recipients, notifier.EventMessageNew, MessageNewEvent{
		ChatID:    chatID,
		MessageID: msg.ID,
		SenderID:  senderID,
		Body:      msg.Body,
	})

	return messageDTO(msg), nil
}

// ListMessages 获取群聊消息（按 created_at、插入序升序）
func (s *ChatService) ListMessages(ctx context.Context, chatID string, limit, offset int) ([]MessageDTO, error) {
	if _, err := s.chats.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	messages, err := s.chats.ListMessages(ctx, chatID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]MessageDTO, 0, len(messages))
	for i := range messages {
		out = append(out, *messageDTO(&messages[i]))
	}
	return out, nil
}
