package collab

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryPersistence is an in-memory Persistence implementation: a
// mutex-guarded map, no durability, grounded on the teacher's
// task/repository in-memory repository idiom (lock-protected maps, no
// background goroutine). Intended for tests and single-process demos, not
// production use.
type MemoryPersistence struct {
	mu       sync.RWMutex
	sessions map[string]SessionRecord
	messages map[string][]StoredMessage
	attach   map[string][]byte
}

var _ Persistence = (*MemoryPersistence)(nil)

// NewMemoryPersistence constructs an empty MemoryPersistence.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		sessions: make(map[string]SessionRecord),
		messages: make(map[string][]StoredMessage),
		attach:   make(map[string][]byte),
	}
}

func (m *MemoryPersistence) PutSession(ctx context.Context, session SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryPersistence) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return &s, nil
}

func (m *MemoryPersistence) ListSessions(ctx context.Context, limit, offset int) ([]SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SessionRecord, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return paginate(out, limit, offset), nil
}

func (m *MemoryPersistence) AppendMessage(ctx context.Context, sessionID string, msg StoredMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	m.messages[sessionID] = append(m.messages[sessionID], msg)
	return nil
}

func (m *MemoryPersistence) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]StoredMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return paginate(append([]StoredMessage(nil), m.messages[sessionID]...), limit, offset), nil
}

func (m *MemoryPersistence) StoreAttachment(ctx context.Context, sessionID, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.attach[id] = append([]byte(nil), data...)
	return id, nil
}

func (m *MemoryPersistence) StoreFeedback(ctx context.Context, sessionID string, rating int, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("session not found: %s", sessionID)
	}
	return nil
}

func (m *MemoryPersistence) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
