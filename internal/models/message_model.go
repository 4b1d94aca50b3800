package models

import "time"

// Message 消息模型
// Messages are append-only. The ID is a snowflake so that rows inserted in
// the same millisecond still order by insertion sequence; readers sort by
// created_at then id.
type Message struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	ChatID    string    `gorm:"type:uuid;not null;index" json:"chat_id"`
	SenderID  uint      `gorm:"not null;index" json:"sender_id"`
	Body      string    `gorm:"not null" json:"body"`
	MsgType   string    `gorm:"type:varchar(16);default:text" json:"msg_type"` // text, system
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}
