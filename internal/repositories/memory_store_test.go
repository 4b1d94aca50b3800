package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koinonia-app/QueueChat/internal/errs"
	"github.com/koinonia-app/QueueChat/internal/models"
)

func seedQueue(t *testing.T, store *MemoryStore) *models.Queue {
	t.Helper()
	queue := &models.Queue{
		ID:              "q-1",
		Title:           "prayer circle",
		MinParticipants: 3,
		MaxParticipants: 5,
		CurrentCount:    1,
		Status:          models.QueueWaiting,
		CreatorID:       1,
	}
	creator := &models.Membership{UserID: 1, Role: models.RoleCreator, JoinedAt: time.Now()}
	require.NoError(t, store.CreateQueue(context.Background(), queue, creator))
	return queue
}

func TestWithQueueLockCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := seedQueue(t, store)

	err := store.WithQueueLock(ctx, queue.ID, func(tx QueueTx) error {
		if err := tx.InsertMembership(&models.Membership{UserID: 2, Role: models.RoleMember, JoinedAt: time.Now()}); err != nil {
			return err
		}
		tx.Queue().CurrentCount++
		return tx.SaveQueue()
	})
	require.NoError(t, err)

	got, err := store.GetQueue(ctx, queue.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentCount)
}

func TestWithQueueLockRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := seedQueue(t, store)

	err := store.WithQueueLock(ctx, queue.ID, func(tx QueueTx) error {
		if err := tx.InsertMembership(&models.Membership{UserID: 2, Role: models.RoleMember, JoinedAt: time.Now()}); err != nil {
			return err
		}
		tx.Queue().CurrentCount++
		tx.Queue().Status = models.QueueActive
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := store.GetQueue(ctx, queue.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentCount, "staged increment must be discarded")
	assert.Equal(t, models.QueueWaiting, got.Status, "staged status flip must be discarded")

	var members []uint
	require.NoError(t, store.WithQueueLock(ctx, queue.ID, func(tx QueueTx) error {
		var err error
		members, err = tx.MembershipUserIDs()
		return err
	}))
	assert.Equal(t, []uint{1}, members, "staged membership must be discarded")
}

func TestWithQueueLockUnknownQueue(t *testing.T) {
	store := NewMemoryStore()
	err := store.WithQueueLock(context.Background(), "missing", func(tx QueueTx) error { return nil })
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFailNextWithConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := seedQueue(t, store)

	store.FailNextWithConflict(2)

	for i := 0; i < 2; i++ {
		err := store.WithQueueLock(ctx, queue.ID, func(tx QueueTx) error { return nil })
		assert.ErrorIs(t, err, errs.ErrStoreConflict)
	}
	err := store.WithQueueLock(ctx, queue.ID, func(tx QueueTx) error { return nil })
	assert.NoError(t, err, "forced conflicts are consumed")
}

func TestChatStoreReads(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := seedQueue(t, store)

	// Realize by hand: create the chat and repoint the memberships.
	require.NoError(t, store.WithQueueLock(ctx, queue.ID, func(tx QueueTx) error {
		if err := tx.CreateChat(&models.Chat{
			ID:          "c-1",
			QueueID:     queue.ID,
			Title:       queue.Title,
			MemberCount: 1,
			Status:      models.ChatActive,
		}); err != nil {
			return err
		}
		return tx.RepointMemberships("c-1")
	}))

	chat, err := store.GetChat(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, queue.ID, chat.QueueID)

	chats, err := store.ListUserChats(ctx, 1)
	require.NoError(t, err)
	require.Len(t, chats, 1)

	membership, err := store.GetChatMembership(ctx, "c-1", 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), membership.UserID)

	_, err = store.GetChatMembership(ctx, "c-1", 2)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
