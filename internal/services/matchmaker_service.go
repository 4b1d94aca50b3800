package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/koinonia-app/QueueChat/internal/errs"
	"github.com/koinonia-app/QueueChat/internal/models"
	"github.com/koinonia-app/QueueChat/internal/notifier"
	"github.com/koinonia-app/QueueChat/internal/repositories"
	logger "github.com/koinonia-app/QueueChat/middleware/log"
)

// MatchmakerService 匹配服务
// The queue state machine: waiting → active (realized into a chat) or
// waiting → cancelled. All mutations for one queue run under the store's
// per-queue lock, and the whole unit of work is retried on transient store
// conflicts so callers never see them.
type MatchmakerService struct {
	store      repositories.MatchStore
	dispatcher *notifier.Dispatcher
	logger     *logger.Logger

	maxRetries int
	backoff    time.Duration
}

// NewMatchmakerService 创建匹配服务实例
func NewMatchmakerService(store repositories.MatchStore, dispatcher *notifier.Dispatcher, log *logger.Logger, maxRetries int, backoff time.Duration) *MatchmakerService {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 20 * time.Millisecond
	}
	return &MatchmakerService{
		store:      store,
		dispatcher: dispatcher,
		logger:     log,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// CreateQueueRequest 创建队列请求
type CreateQueueRequest struct {
	Title           string `json:"title" binding:"required"`
	Description     string `json:"description"`
	Intention       string `json:"intention"`
	MinParticipants int    `json:"min_participants" binding:"required"`
	MaxParticipants int    `json:"max_participants" binding:"required"`
}

// QueueDTO 队列数据传输对象
type QueueDTO struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Intention       string    `json:"intention"`
	MinParticipants int       `json:"min_participants"`
	MaxParticipants int       `json:"max_participants"`
	CurrentCount    int       `json:"current_count"`
	Status          string    `json:"status"`
	CreatorID       uint      `json:"creator_id"`
	ChatID          *string   `json:"chat_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func queueDTO(q *models.Queue) *QueueDTO {
	return &QueueDTO{
		ID:              q.ID,
		Title:           q.Title,
		Description:     q.Description,
		Intention:       q.Intention,
		MinParticipants: q.MinParticipants,
		MaxParticipants: q.MaxParticipants,
		CurrentCount:    q.CurrentCount,
		Status:          string(q.Status),
		CreatorID:       q.CreatorID,
		ChatID:          q.ChatID,
		CreatedAt:       q.CreatedAt,
	}
}

// ChatFormedEvent is the payload fanned out when a queue realizes.
type ChatFormedEvent struct {
	ChatID      string `json:"chat_id"`
	QueueID     string `json:"queue_id"`
	Title       string `json:"title"`
	MemberCount int    `json:"member_count"`
}

// CreateQueue 创建队列，创建者自动入队
func (s *MatchmakerService) CreateQueue(ctx context.Context, creatorID uint, req *CreateQueueRequest) (*QueueDTO, error) {
	if req.Title == "" || len(req.Title) > 100 {
		return nil, fmt.Errorf("%w: title length invalid", errs.ErrInvalidArgument)
	}
	if req.MinParticipants < 2 {
		return nil, fmt.Errorf("%w: min_participants must be at least 2", errs.ErrInvalidArgument)
	}
	if req.MaxParticipants < req.MinParticipants {
		return nil, fmt.Errorf("%w: max_participants must be >= min_participants", errs.ErrInvalidArgument)
	}

	now := time.Now()
	queue := &models.Queue{
		ID:              uuid.New().String(),
		Title:           req.Title,
		Description:     req.Description,
		Intention:       req.Intention,
		MinParticipants: req.MinParticipants,
		MaxParticipants: req.MaxParticipants,
		CurrentCount:    1,
		Status:          models.QueueWaiting,
		CreatorID:       creatorID,
	}
	creator := &models.Membership{
		UserID:   creatorID,
		Role:     models.RoleCreator,
		JoinedAt: now,
	}

	if err := s.store.CreateQueue(ctx, queue, creator); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "queue created",
		zap.String("queue_id", queue.ID),
		zap.Uint("creator_id", creatorID),
		zap.Int("min", queue.MinParticipants),
		zap.Int("max", queue.MaxParticipants),
	)
	return queueDTO(queue), nil
}

// ListWaitingQueues 获取所有等待中的队列
func (s *MatchmakerService) ListWaitingQueues(ctx context.Context) ([]QueueDTO, error) {
	queues, err := s.store.ListWaitingQueues(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]QueueDTO, 0, len(queues))
	for i := range queues {
		out = append(out, *queueDTO(&queues[i]))
	}
	return out, nil
}

// Join 用户加入队列
// Joining twice is a silent no-op. The join that lifts CurrentCount to
// MinParticipants realizes the queue into a chat inside the same locked unit
// of work, so exactly one caller ever observes the threshold crossing.
func (s *MatchmakerService) Join(ctx context.Context, queueID string, userID uint) error {
	var formed *models.Chat
	var memberIDs []uint

	err := s.withConflictRetry(ctx, "join", func() error {
		formed, memberIDs = nil, nil
		return s.store.WithQueueLock(ctx, queueID, func(tx repositories.QueueTx) error {
			q := tx.Queue()
			if q.Status != models.QueueWaiting {
				// A racer that lost the last slot sees the ceiling, not the
				// realization that consumed it.
				if q.Status == models.QueueActive && q.CurrentCount >= q.MaxParticipants {
					return errs.ErrQueueFull
				}
				return errs.ErrAlreadyClosed
			}

			exists, err := tx.MembershipExists(userID)
			if err != nil {
				return err
			}
			if exists {
				// At-least-once delivery of client intents: the duplicate
				// join neither errors nor double-counts.
				return nil
			}

			if q.CurrentCount >= q.MaxParticipants {
				return errs.ErrQueueFull
			}

			if err := tx.InsertMembership(&models.Membership{
				UserID:   userID,
				Role:     models.RoleMember,
				JoinedAt: time.Now(),
			}); err != nil {
				return err
			}
			q.CurrentCount++

			if q.CurrentCount >= q.MinParticipants {
				chat, ids, err := s.realizeLocked(tx, q)
				if err != nil {
					return err
				}
				formed, memberIDs = chat, ids
			}
			return tx.SaveQueue()
		})
	})
	if err != nil {
		return err
	}

	if formed != nil {
		s.logger.InfoContext(ctx, "queue realized into chat",
			zap.String("queue_id", queueID),
			zap.String("chat_id", formed.ID),
			zap.Int("member_count", formed.MemberCount),
		)
		s.dispatcher.Fanout(ctx, memberIDs, notifier.EventChatFormed, ChatFormedEvent{
			ChatID:      formed.ID,
			QueueID:     formed.QueueID,
			Title:       formed.Title,
			MemberCount: formed.MemberCount,
		})
	}
	return nil
}

// realizeLocked converts a satisfied queue into a chat. Runs inside the
// caller's locked unit of work: chat creation, membership repointing and the
// status flip commit or roll back together, so a queue can never end up
// active without a chat or vice versa.
func (s *MatchmakerService) realizeLocked(tx repositories.QueueTx, q *models.Queue) (*models.Chat, []uint, error) {
	chat := &models.Chat{
		ID:          uuid.New().String(),
		QueueID:     q.ID,
		Title:       q.Title,
		Description: q.Description,
		Intention:   q.Intention,
		MemberCount: q.CurrentCount,
		Status:      models.ChatActive,
	}
	if err := tx.CreateChat(chat); err != nil {
		return nil, nil, err
	}
	if err := tx.RepointMemberships(chat.ID); err != nil {
		return nil, nil, err
	}
	memberIDs, err := tx.MembershipUserIDs()
	if err != nil {
		return nil, nil, err
	}

	q.Status = models.QueueActive
	q.ChatID = &chat.ID
	return chat, memberIDs, nil
}

// Leave 用户退出队列
// Idempotent: leaving a queue the user is not in is a no-op, and leaving a
// queue that already realized or was cancelled changes nothing (those states
// are terminal for queue-side mutation). Leaving never triggers realization.
func (s *MatchmakerService) Leave(ctx context.Context, queueID string, userID uint) error {
	return s.withConflictRetry(ctx, "leave", func() error {
		return s.store.WithQueueLock(ctx, queueID, func(tx repositories.QueueTx) error {
			q := tx.Queue()
			if q.Status != models.QueueWaiting {
				return nil
			}

			removed, err := tx.DeleteMembership(userID)
			if err != nil {
				return err
			}
			if !removed {
				return nil
			}

			if q.CurrentCount > 0 {
				q.CurrentCount--
			}
			return tx.SaveQueue()
		})
	})
}

// Cancel 创建者取消队列
// Creator-only and waiting-only. The status flip and the removal of every
// pending membership are one atomic step.
func (s *MatchmakerService) Cancel(ctx context.Context, queueID string, requesterID uint) error {
	err := s.withConflictRetry(ctx, "cancel", func() error {
		return s.store.WithQueueLock(ctx, queueID, func(tx repositories.QueueTx) error {
			q := tx.Queue()
			if q.Status != models.QueueWaiting {
				return errs.ErrAlreadyClosed
			}
			if q.CreatorID != requesterID {
				return errs.ErrForbidden
			}

			if err := tx.DeleteQueueMemberships(); err != nil {
				return err
			}
			q.Status = models.QueueCancelled
			q.CurrentCount = 0
			return tx.SaveQueue()
		})
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "queue cancelled",
		zap.String("queue_id", queueID),
		zap.Uint("requester_id", requesterID),
	)
	return nil
}

// withConflictRetry retries fn on errs.ErrStoreConflict with exponential
// backoff and jitter. Conflicts are an internal concern: when retries run
// out the caller gets a generic internal error, never the conflict itself.
func (s *MatchmakerService) withConflictRetry(ctx context.Context, op string, fn func() error) error {
	backoff := s.backoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, errs.ErrStoreConflict) {
			return err
		}
		if attempt >= s.maxRetries {
			s.logger.ErrorContext(ctx, "store conflict retries exhausted",
				zap.String("op", op),
				zap.Int("attempts", attempt+1),
			)
			return fmt.Errorf("%s failed after %d attempts under concurrent updates", op, attempt+1)
		}

		s.logger.DebugContext(ctx, "retrying after store conflict",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
		)
		sleep := backoff + time.Duration(rand.Int63n(int64(backoff)))
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}
