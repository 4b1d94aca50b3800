package repositories

import (
	"context"

	"github.com/koinonia-app/QueueChat/internal/models"
)

// QueueTx is the handle a caller gets inside WithQueueLock. Every mutation
// performed through it belongs to the same unit of work and commits or rolls
// back as a whole. Queue() returns the locked row; field mutations become
// durable via SaveQueue.
type QueueTx interface {
	// Queue returns the queue row loaded under the per-queue lock.
	Queue() *models.Queue

	// MembershipExists reports whether the user already holds a membership
	// row for this queue.
	MembershipExists(userID uint) (bool, error)

	// MembershipUserIDs lists the user IDs of every membership row for this
	// queue, in join order.
	MembershipUserIDs() ([]uint, error)

	// InsertMembership adds a membership row for this queue.
	InsertMembership(m *models.Membership) error

	// DeleteMembership removes the user's membership row for this queue and
	// reports whether a row was actually removed.
	DeleteMembership(userID uint) (bool, error)

	// DeleteQueueMemberships removes every membership row for this queue.
	DeleteQueueMemberships() error

	// CreateChat inserts the chat materialized from this queue.
	CreateChat(chat *models.Chat) error

	// RepointMemberships updates every membership row for this queue to
	// reference the given chat.
	RepointMemberships(chatID string) error

	// SaveQueue persists the mutations made to Queue().
	SaveQueue() error
}

// MatchStore is the durable store behind the matchmaker. WithQueueLock is
// the serialization point: for a single queue ID, concurrent units of work
// are mutually exclusive, and a unit of work that cannot be serialized fails
// with errs.ErrStoreConflict so the caller can retry it. Operations on
// different queues never contend with each other.
type MatchStore interface {
	// CreateQueue inserts the queue together with its creator membership in
	// one atomic step.
	CreateQueue(ctx context.Context, queue *models.Queue, creator *models.Membership) error

	// GetQueue loads a queue by ID. Returns errs.ErrNotFound if absent.
	GetQueue(ctx context.Context, queueID string) (*models.Queue, error)

	// ListWaitingQueues lists queues still collecting participants, newest
	// first.
	ListWaitingQueues(ctx context.Context) ([]models.Queue, error)

	// WithQueueLock runs fn inside one atomic unit of work with the queue
	// row under per-queue exclusion. Returns errs.ErrNotFound if the queue
	// does not exist. Any error from fn rolls the whole unit back.
	WithQueueLock(ctx context.Context, queueID string, fn func(tx QueueTx) error) error
}

// ChatStore is the durable store behind the chat service: realized chats,
// their memberships and their message log.
type ChatStore interface {
	// GetChat loads a chat by ID. Returns errs.ErrNotFound if absent.
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)

	// ListUserChats lists the chats the user holds a membership in, newest
	// first.
	ListUserChats(ctx context.Context, userID uint) ([]models.Chat, error)

	// ListChatMemberships lists the memberships pointing at the chat, in
	// join order.
	ListChatMemberships(ctx context.Context, chatID string) ([]models.Membership, error)

	// GetChatMembership loads the user's membership in the chat. Returns
	// errs.ErrNotFound if the user is not a member.
	GetChatMembership(ctx context.Context, chatID string, userID uint) (*models.Membership, error)

	// CreateMessage appends a message to the chat's log.
	CreateMessage(ctx context.Context, msg *models.Message) error

	// ListMessages returns the chat's messages ordered by created_at then
	// id, ascending.
	ListMessages(ctx context.Context, chatID string, limit, offset int) ([]models.Message, error)
}
