package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koinonia-app/QueueChat/internal/errs"
	"github.com/koinonia-app/QueueChat/internal/identity"
	"github.com/koinonia-app/QueueChat/internal/notifier"
	"github.com/koinonia-app/QueueChat/internal/pkg/snowflake"
	"github.com/koinonia-app/QueueChat/internal/repositories"
	logger "github.com/koinonia-app/QueueChat/middleware/log"
)

type chatFixture struct {
	store   *repositories.MemoryStore
	matcher *MatchmakerService
	chats   *ChatService
	rec     *recordingNotifier
	chatID  string
}

// newChatFixture realizes a two member chat (users 1 and 2) through the
// matchmaker so the chat tests run against state produced the same way
// production produces it.
func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	ctx := context.Background()

	store := repositories.NewMemoryStore()
	matcher, rec := newTestMatchmaker(store)

	q := mustCreateQueue(t, matcher, 1, 2, 4)
	require.NoError(t, matcher.Join(ctx, q.ID, 2))

	realized, err := store.GetQueue(ctx, q.ID)
	require.NoError(t, err)
	require.NotNil(t, realized.ChatID)

	ids, err := snowflake.NewGenerator(1)
	require.NoError(t, err)

	provider := identity.NewStaticProvider()
	provider.Put(identity.Profile{ID: 1, DisplayName: "Hannah"})
	provider.Put(identity.Profile{ID: 2, DisplayName: "Miriam"})

	log := logger.NewNopLogger()
	chats := NewChatService(store, ids, provider, notifier.NewDispatcher(rec, inlinePool{}, log), log)

	return &chatFixture{
		store:   store,
		matcher: matcher,
		chats:   chats,
		rec:     rec,
		chatID:  *realized.ChatID,
	}
}

func TestListMyChats(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	for _, userID := range []uint{1, 2} {
		chats, err := f.chats.ListMyChats(ctx, userID)
		require.NoError(t, err)
		require.Len(t, chats, 1)
		assert.Equal(t, f.chatID, chats[0].ID)
		assert.Equal(t, 2, chats[0].MemberCount)
	}

	chats, err := f.chats.ListMyChats(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestGetChatMembers(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	profiles, err := f.chats.GetChatMembers(ctx, f.chatID)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	names := []string{profiles[0].DisplayName, profiles[1].DisplayName}
	assert.Contains(t, names, "Hannah")
	assert.Contains(t, names, "Miriam")

	_, err = f.chats.GetChatMembers(ctx, "no-such-chat")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPostMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("members can post, ordering is stable", func(t *testing.T) {
		f := newChatFixture(t)

		m1, err := f.chats.PostMessage(ctx, f.chatID, 1, "first")
		require.NoError(t, err)
		m2, err := f.chats.PostMessage(ctx, f.chatID, 2, "second")
		require.NoError(t, err)
		assert.Less(t, m1.ID, m2.ID)

		messages, err := f.chats.ListMessages(ctx, f.chatID, 50, 0)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "first", messages[0].Body)
		assert.Equal(t, "second", messages[1].Body)
	})

	t.Run("non-members are forbidden", func(t *testing.T) {
		f := newChatFixture(t)
		_, err := f.chats.PostMessage(ctx, f.chatID, 99, "hello")
		assert.ErrorIs(t, err, errs.ErrForbidden)

		messages, err := f.chats.ListMessages(ctx, f.chatID, 50, 0)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("unknown chat", func(t *testing.T) {
		f := newChatFixture(t)
		_, err := f.chats.PostMessage(ctx, "no-such-chat", 1, "hello")
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("body validation", func(t *testing.T) {
		f := newChatFixture(t)

		_, err := f.chats.PostMessage(ctx, f.chatID, 1, "")
		assert.ErrorIs(t, err, errs.ErrInvalidArgument)

		_, err = f.chats.PostMessage(ctx, f.chatID, 1, strings.Repeat("a", maxMessageLength+1))
		assert.ErrorIs(t, err, errs.ErrInvalidArgument)
	})

	t.Run("fan-out excludes the sender", func(t *testing.T) {
		f := newChatFixture(t)

		msg, err := f.chats.PostMessage(ctx, f.chatID, 1, "shalom")
		require.NoError(t, err)

		events := f.rec.eventsFor(notifier.EventMessageNew)
		require.Len(t, events, 1)
		assert.Equal(t, uint(2), events[0].UserID)
		payload, ok := events[0].Payload.(MessageNewEvent)
		require.True(t, ok)
		assert.Equal(t, msg.ID, payload.MessageID)
		assert.Equal(t, uint(1), payload.SenderID)
	})

	t.Run("delivery failure never fails the post", func(t *testing.T) {
		f := newChatFixture(t)
		f.rec.err = assert.AnError

		msg, err := f.chats.PostMessage(ctx, f.chatID, 1, "still here")
		require.NoError(t, err)

		messages, err := f.chats.ListMessages(ctx, f.chatID, 50, 0)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, msg.ID, messages[0].ID)
	})
}

func TestListMessages(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	for _, body := range []string{"one", "two", "three", "four"} {
		_, err := f.chats.PostMessage(ctx, f.chatID, 1, body)
		require.NoError(t, err)
	}

	t.Run("limit and offset window the log", func(t *testing.T) {
		page, err := f.chats.ListMessages(ctx, f.chatID, 2, 1)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "two", page[0].Body)
		assert.Equal(t, "three", page[1].Body)
	})

	t.Run("offset past the end", func(t *testing.T) {
		page, err := f.chats.ListMessages(ctx, f.chatID, 10, 100)
		require.NoError(t, err)
		assert.Empty(t, page)
	})

	t.Run("unknown chat", func(t *testing.T) {
		_, err := f.chats.ListMessages(ctx, "no-such-chat", 10, 0)
		assert.ErrorIs(t, err, errs.ErrNotFound)
	})
}
