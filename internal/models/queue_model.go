package models

import "time"

// QueueStatus is the lifecycle state of a matchmaking queue.
type QueueStatus string

const (
	QueueWaiting   QueueStatus = "waiting"
	QueueActive    QueueStatus = "active"
	QueueCancelled QueueStatus = "cancelled"
)

// Queue 匹配队列模型
// A queue collects participants toward MinParticipants. Once the minimum is
// reached it converts into exactly one Chat and the status becomes active.
// Both active and cancelled are terminal for queue-side mutation.
type Queue struct {
	ID string `gorm:"type:uuid;primaryKey" json:"id"`

	Title           string      `gorm:"not null" json:"title"`
	Description     string      `json:"description"`
	Intention       string      `gorm:"index" json:"intention"` // prayer, study, fellowship, ...
	MinParticipants int         `gorm:"not null" json:"min_participants"`
	MaxParticipants int         `gorm:"not null" json:"max_participants"`
	CurrentCount    int         `gorm:"not null;default:1" json:"current_count"`
	Status          QueueStatus `gorm:"type:varchar(16);default:waiting;index" json:"status"`
	CreatorID       uint        `gorm:"not null" json:"creator_id"`
	ChatID          *string     `gorm:"type:uuid" json:"chat_id,omitempty"` // set once, at realization

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Queue) TableName() string {
	return "queues"
}
