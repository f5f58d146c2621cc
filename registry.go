package socket

import "sync"

// Registry tracks live sessions by identity.
type Registry interface {
	// Add is called once when a session is created.
	Add(s *Session)
	// Remove is called once when the session with the given id is torn down.
	Remove(id string)
}

// SessionTable is a Registry backed by a lock-protected map.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionTable returns an empty table.
func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: make(map[string]*Session)}
}

// Add registers s under its id.
func (t *SessionTable) Add(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.ID()] = s
}

// Remove forgets the session with the given id.
func (t *SessionTable) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Get returns the live session with the given id.
func (t *SessionTable) Get(id string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Range calls fn for every live session until fn returns false.
// The table is not locked while fn runs, so fn may close sessions.
func (t *SessionTable) Range(fn func(*Session) bool) {
	t.mu.RLock()
	sessions := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		sessions = append(sessions, s)
	}
	t.mu.RUnlock()

	for _, s := range sessions {
		if !fn(s) {
			return
		}
	}
}

// CloseAll closes every live session.
func (t *SessionTable) CloseAll() {
	t.Range(func(s *Session) bool {
		_ = s.Close()
		return true
	})
}
