package repositories

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/koinonia-app/QueueChat/internal/errs"
	"github.com/koinonia-app/QueueChat/internal/models"
)

// MemoryStore is an in-memory MatchStore + ChatStore with the same atomicity
// contract as the Postgres-backed repositories: WithQueueLock stages every
// mutation and applies it only when fn returns nil, and a per-queue mutex
// serializes units of work on the same queue while leaving other queues
// uncontended. Used by the service tests and as a single-process fallback.
type MemoryStore struct {
	mu          sync.RWMutex
	queues      map[string]*models.Queue
	memberships map[uint]*models.Membership
	chats       map[string]*models.Chat
	messages    map[string][]models.Message

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	nextMembershipID uint64

	// forcedConflicts > 0 makes the next units of work fail with
	// ErrStoreConflict before running fn. Tests use it to exercise the
	// service retry loop.
	forcedConflicts int64
}

// NewMemoryStore 创建内存存储实例
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		queues:      make(map[string]*models.Queue),
		memberships: make(map[uint]*models.Membership),
		chats:       make(map[string]*models.Chat),
		messages:    make(map[string][]models.Message),
		locks:       make(map[string]*sync.Mutex),
	}
}

var (
	_ MatchStore = (*MemoryStore)(nil)
	_ ChatStore  = (*MemoryStore)(nil)
)

// FailNextWithConflict makes the next n WithQueueLock calls fail with
// errs.ErrStoreConflict.
func (s *MemoryStore) FailNextWithConflict(n int) {
	atomic.StoreInt64(&s.forcedConflicts, int64(n))
}

func (s *MemoryStore) queueLock(queueID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if l, ok := s.locks[queueID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[queueID] = l
	return l
}

func (s *MemoryStore) nextID() uint {
	return uint(atomic.AddUint64(&s.nextMembershipID, 1))
}

// CreateQueue inserts the queue and its creator membership atomically.
func (s *MemoryStore) CreateQueue(_ context.Context, queue *models.Queue, creator *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := *queue
	s.queues[q.ID] = &q
	creator.ID = s.nextID()
	creator.QueueID = q.ID
	m := *creator
	s.memberships[m.ID] = &m
	return nil
}

// GetQueue loads a copy of the queue row.
func (s *MemoryStore) GetQueue(_ context.Context, queueID string) (*models.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[queueID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

// ListWaitingQueues lists waiting queues, newest first.
func (s *MemoryStore) ListWaitingQueues(_ context.Context) ([]models.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Queue
	for _, q := range s.queues {
		if q.Status == models.QueueWaiting {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// WithQueueLock serializes units of work per queue and commits staged
// mutations only when fn succeeds.
func (s *MemoryStore) WithQueueLock(_ context.Context, queueID string, fn func(tx QueueTx) error) error {
	if atomic.AddInt64(&s.forcedConflicts, -1) >= 0 {
		return errs.ErrStoreConflict
	}
	atomic.StoreInt64(&s.forcedConflicts, 0)

	lock := s.queueLock(queueID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	orig, ok := s.queues[queueID]
	if !ok {
		s.mu.RUnlock()
		return errs.ErrNotFound
	}
	tx := &memQueueTx{store: s, queue: &models.Queue{}}
	*tx.queue = *orig
	for _, m := range s.memberships {
		if m.QueueID == queueID {
			cp := *m
			tx.members = append(tx.members, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(tx.members, func(i, j int) bool { return tx.members[i].ID < tx.members[j].ID })

	if err := fn(tx); err != nil {
		return err
	}

	// Commit: replace the queue row and this queue's membership rows with
	// the staged state.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[queueID] = tx.queue
	for id, m := range s.memberships {
		if m.QueueID == queueID {
			delete(s.memberships, id)
		}
	}
	for _, m := range tx.members {
		cp := *m
		s.memberships[cp.ID] = &cp
	}
	if tx.chat != nil {
		cp := *tx.chat
		s.chats[cp.ID] = &cp
	}
	return nil
}

// memQueueTx stages mutations for a single queue.
type memQueueTx struct {
	store   *MemoryStore
	queue   *models.Queue
	members []*models.Membership
	chat    *models.Chat
}

func (t *memQueueTx) Queue() *models.Queue {
	return t.queue
}

func (t *memQueueTx) MembershipExists(userID uint) (bool, error) {
	for _, m := range t.members {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memQueueTx) MembershipUserIDs() ([]uint, error) {
	ids := make([]uint, 0, len(t.members))
	for _, m := range t.members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (t *memQueueTx) InsertMembership(m *models.Membership) error {
	m.ID = t.store.nextID()
	m.QueueID = t.queue.ID
	cp := *m
	t.members = append(t.members, &cp)
	return nil
}

func (t *memQueueTx) DeleteMembership(userID uint) (bool, error) {
	for i, m := range t.members {
		if m.UserID == userID {
			t.members = append(t.members[:i], t.members[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (t *memQueueTx) DeleteQueueMemberships() error {
	t.members = nil
	return nil
}

func (t *memQueueTx) CreateChat(chat *models.Chat) error {
	cp := *chat
	t.chat = &cp
	return nil
}

func (t *memQueueTx) RepointMemberships(chatID string) error {
	for _, m := range t.members {
		id := chatID
		m.ChatID = &id
	}
	return nil
}

func (t *memQueueTx) SaveQueue() error {
	return nil // staged queue is committed by WithQueueLock
}

// --- ChatStore ---

// GetChat loads a copy of the chat row.
func (s *MemoryStore) GetChat(_ context.Context, chatID string) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ListUserChats lists the chats the user is a member of, newest first.
func (s *MemoryStore) ListUserChats(_ context.Context, userID uint) ([]models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Chat
	for _, m := range s.memberships {
		if m.UserID == userID && m.ChatID != nil {
			if c, ok := s.chats[*m.ChatID]; ok {
				out = append(out, *c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListChatMemberships lists memberships pointing at the chat, in join order.
func (s *MemoryStore) ListChatMemberships(_ context.Context, chatID string) ([]models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Membership
	for _, m := range s.memberships {
		if m.ChatID != nil && *m.ChatID == chatID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetChatMembership loads the user's membership in the chat.
func (s *MemoryStore) GetChatMembership(_ context.Context, chatID string, userID uint) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.memberships {
		if m.UserID == userID && m.ChatID != nil && *m.ChatID == chatID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

// CreateMessage appends a message to the chat's log in commit order.
func (s *MemoryStore) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], *msg)
	return nil
}

// ListMessages returns messages ordered by created_at then id, ascending.
func (s *MemoryStore) ListMessages(_ context.Context, chatID string, limit, offset int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]models.Message, len(s.messages[chatID]))
	copy(msgs, s.messages[chatID])
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	if offset > 0 {
		if offset >= len(msgs) {
			return nil, nil
		}
		msgs = msgs[offset:]
	}
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return msgs, nil
}
