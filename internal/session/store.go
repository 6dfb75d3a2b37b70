package session

import "sync"

// Store maps a user identity to its single active session. Creating a
// new session for a user always replaces any prior one. Implementations
// must be safe for concurrent use by message processing and the sweeper.
type Store interface {
	Get(userID int64) (Session, bool)
	Put(userID int64, s Session)
	Delete(userID int64)
	// ForEach visits a snapshot of the stored sessions. Returning false
	// from the callback stops the iteration.
	ForEach(fn func(userID int64, s Session) bool)
	Len() int
}

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewMemoryStore constructs the in-memory Store used in production;
// session state is ephemeral by design.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[int64]Session)}
}

func (m *memoryStore) Get(userID int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return s, ok
}

func (m *memoryStore) Put(userID int64, s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = s
}

func (m *memoryStore) Delete(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *memoryStore) ForEach(fn func(int64, Session) bool) {
	m.mu.RLock()
	snapshot := make(map[int64]Session, len(m.sessions))
	for id, s := range m.sessions {
		snapshot[id] = s
	}
	m.mu.RUnlock()

	for id, s := range snapshot {
		if !fn(id, s) {
			return
		}
	}
}

func (m *memoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
