package models

import "time"

// MemberRole 成员角色
type MemberRole string

const (
	RoleCreator MemberRole = "creator"
	RoleMember  MemberRole = "member"
)

// Membership 成员关系模型
// A membership is a participant's claim on a queue or, after realization, on
// the chat materialized from it. QueueID is kept as a historical reference
// once ChatID is set; a row with ChatID == nil counts toward the queue's
// CurrentCount. The (queue_id, user_id) unique index makes join idempotent.
type Membership struct {
	ID       uint       `gorm:"primaryKey" json:"id"`
	QueueID  string     `gorm:"type:uuid;not null;uniqueIndex:idx_queue_user" json:"queue_id"`
	UserID   uint       `gorm:"not null;uniqueIndex:idx_queue_user;index" json:"user_id"`
	ChatID   *string    `gorm:"type:uuid;index" json:"chat_id,omitempty"`
	Role     MemberRole `gorm:"type:varchar(16);default:member" json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
}

func (Membership) TableName() string {
	return "memberships"
}
