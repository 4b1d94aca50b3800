package models

import "time"

// ChatStatus is the lifecycle state of a realized chat.
type ChatStatus string

const (
	ChatActive   ChatStatus = "active"
	ChatArchived ChatStatus = "archived"
)

// Chat 群聊模型
// A chat is created exactly once per queue, at the moment the queue reaches
// its minimum. Title, description and intention are copied from the queue at
// realization time. MemberCount is a snapshot of the membership count at
// creation and is not maintained afterwards.
type Chat struct {
	ID string `gorm:"type:uuid;primaryKey" json:"id"`

	QueueID     string     `gorm:"type:uuid;not null;uniqueIndex" json:"queue_id"`
	Title       string     `gorm:"not null" json:"title"`
	Description string     `json:"description"`
	Intention   string     `json:"intention"`
	MemberCount int        `gorm:"not null" json:"member_count"`
	Status      ChatStatus `gorm:"type:varchar(16);default:active" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Chat) TableName() string {
	return "chats"
}
