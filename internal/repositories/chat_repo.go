package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/koinonia-app/QueueChat/internal/models"
)

// ChatRepository 群聊仓储
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建群聊仓储实例
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

var _ ChatStore = (*ChatRepository)(nil)

// GetChat 根据 ID 获取群聊
func (r *ChatRepository) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	if err := r.db.WithContext(ctx).First(&chat, "id = ?", chatID).Error; err != nil {
		return nil, translateStoreError(err)
	}
	return &chat, nil
}

// ListUserChats 获取用户所在的所有群聊
func (r *ChatRepository) ListUserChats(ctx context.Context, userID uint) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.chat_id = chats.id").
		Where("memberships.user_id = ?", userID).
		Order("chats.created_at DESC").
		Find(&chats).Error
	return chats, translateStoreError(err)
}

// ListChatMemberships 获取群聊成员关系，按加入顺序排列
func (r *ChatRepository) ListChatMemberships(ctx context.Context, chatID string) ([]models.Membership, error) {
	var members []models.Membership
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("joined_at ASC, id ASC").
		Find(&members).Error
	return members, translateStoreError(err)
}

// GetChatMembership 获取某个用户在群聊中的成员关系
func (r *ChatRepository) GetChatMembership(ctx context.Context, chatID string, userID uint) (*models.Membership, error) {
	var member models.Membership
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		First(&member).Error
	if err != nil {
		return nil, translateStoreError(err)
	}
	return &member, nil
}

// CreateMessage 追加一条消息
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	return translateStoreError(r.db.WithContext(ctx).Create(msg).Error)
}

// ListMessages 获取群聊消息，按 created_at、id 升序排列
func (r *ChatRepository) ListMessages(ctx context.Context, chatID string, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	q := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	err := q.Find(&messages).Error
	return messages, translateStoreError(err)
}
