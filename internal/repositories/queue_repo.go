package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/koinonia-app/QueueChat/internal/errs"
	"github.com/koinonia-app/QueueChat/internal/models"
)

// QueueRepository 队列仓储
// Postgres-backed MatchStore. The queue row is the serialization point:
// WithQueueLock takes SELECT ... FOR UPDATE on it and holds the lock for the
// whole read-increment-check-realize sequence.
type QueueRepository struct {
	db *gorm.DB
}

// NewQueueRepository 创建队列仓储实例
func NewQueueRepository(db *gorm.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

var _ MatchStore = (*QueueRepository)(nil)

// CreateQueue 创建队列并登记创建者成员
func (r *QueueRepository) CreateQueue(ctx context.Context, queue *models.Queue, creator *models.Membership) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(queue).Error; err != nil {
			return err
		}
		creator.QueueID = queue.ID
		return tx.Create(creator).Error
	})
	return translateStoreError(err)
}

// GetQueue 根据 ID 获取队列
func (r *QueueRepository) GetQueue(ctx context.Context, queueID string) (*models.Queue, error) {
	var queue models.Queue
	if err := r.db.WithContext(ctx).First(&queue, "id = ?", queueID).Error; err != nil {
		return nil, translateStoreError(err)
	}
	return &queue, nil
}

// ListWaitingQueues 获取所有等待中的队列
func (r *QueueRepository) ListWaitingQueues(ctx context.Context) ([]models.Queue, error) {
	var queues []models.Queue
	err := r.db.WithContext(ctx).
		Where("status = ?", models.QueueWaiting).
		Order("created_at DESC").
		Find(&queues).Error
	return queues, translateStoreError(err)
}

// WithQueueLock 在行锁保护下执行一个原子工作单元
func (r *QueueRepository) WithQueueLock(ctx context.Context, queueID string, fn func(tx QueueTx) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var queue models.Queue
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&queue, "id = ?", queueID).Error; err != nil {
			return err
		}
		return fn(&gormQueueTx{tx: tx, queue: &queue})
	})
	return translateStoreError(err)
}

// gormQueueTx adapts a gorm transaction with a locked queue row to QueueTx.
type gormQueueTx struct {
	tx    *gorm.DB
	queue *models.Queue
}

func (t *gormQueueTx) Queue() *models.Queue {
	return t.queue
}

func (t *gormQueueTx) MembershipExists(userID uint) (bool, error) {
	var count int64
	err := t.tx.Model(&models.Membership{}).
		Where("queue_id = ? AND user_id = ?", t.queue.ID, userID).
		Count(&count).Error
	return count > 0, err
}

func (t *gormQueueTx) MembershipUserIDs() ([]uint, error) {
	var ids []uint
	err := t.tx.Model(&models.Membership{}).
		Where("queue_id = ?", t.queue.ID).
		Order("joined_at ASC, id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (t *gormQueueTx) InsertMembership(m *models.Membership) error {
	m.QueueID = t.queue.ID
	return t.tx.Create(m).Error
}

func (t *gormQueueTx) DeleteMembership(userID uint) (bool, error) {
	res := t.tx.Where("queue_id = ? AND user_id = ?", t.queue.ID, userID).
		Delete(&models.Membership{})
	return res.RowsAffected > 0, res.Error
}

func (t *gormQueueTx) DeleteQueueMemberships() error {
	return t.tx.Where("queue_id = ?", t.queue.ID).Delete(&models.Membership{}).Error
}

func (t *gormQueueTx) CreateChat(chat *models.Chat) error {
	return t.tx.Create(chat).Error
}

func (t *gormQueueTx) RepointMemberships(chatID string) error {
	return t.tx.Model(&models.Membership{}).
		Where("queue_id = ?", t.queue.ID).
		Update("chat_id", chatID).Error
}

func (t *gormQueueTx) SaveQueue() error {
	return t.tx.Save(t.queue).Error
}

// translateStoreError maps driver errors onto the shared taxonomy.
// Serialization failures (40001), deadlocks (40P01) and unique violations
// (23505, two racers inserting the same membership) all become
// errs.ErrStoreConflict so the service retries the unit of work.
func translateStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return errs.ErrStoreConflict
		}
	}
	return err
}
