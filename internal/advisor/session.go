package advisor

import (
	"sync"
	"time"

	"github.com/smartbeauty/skincare-rag/internal/retriever"
)

// TokenUsage is the model-reported accounting for one turn.
// Total is always Input + Output; never estimated independently.
type TokenUsage struct {
	Input  int
	Output int
	Total  int
}

// Turn is one user-message/answer exchange. Immutable once appended.
type Turn struct {
	Index       int
	UserMessage string
	Retrieved   retriever.Results
	Answer      string
	Tokens      TokenUsage
	UsingMemory bool
	Timestamp   time.Time
}

// Session holds per-conversation state. The mutex serializes turns addressed
// to the same session; turn ordering and the memory window depend on it.
type Session struct {
	mu sync.Mutex

	ID         string
	TurnCount  int
	History    []Turn
	CreatedAt  time.Time
	LastActive time.Time

	// evicted marks a session removed from the store by Reap. A turn that
	// fetched the session before eviction must not append to it.
	evicted bool
}

// SessionStore owns the session lifecycle: create-on-first-use, clear-on-reset,
// and optional idle eviction. Safe for concurrent use across sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for the id, creating it on first use.
func (s *SessionStore) GetOrCreate(id string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-check: another goroutine may have created it between locks.
	if sess, ok := s.sessions[id]; ok {
		return sess
	}

	now := time.Now().UTC()
	sess = &Session{
		ID:         id,
		CreatedAt:  now,
		LastActive: now,
	}
	s.sessions[id] = sess
	return sess
}

// Acquire returns the session for the id with its mutex held, creating it on
// first use. The caller must release the mutex when the turn is done. If the
// fetched session was evicted before the lock was taken, Acquire re-fetches so
// a turn never lands on a session the store no longer knows.
func (s *SessionStore) Acquire(id string) *Session {
	for {
		sess := s.GetOrCreate(id)
		sess.mu.Lock()
		if !sess.evicted {
			return sess
		}
		sess.mu.Unlock()
	}
}

// Reset clears the session's history and turn count. Calling it for an
// unknown or already-empty session is a no-op, not an error.
func (s *SessionStore) Reset(id string) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	sess.mu.Lock()
	sess.History = nil
	sess.TurnCount = 0
	sess.LastActive = time.Now().UTC()
	sess.mu.Unlock()
}

// Count returns the number of live sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Reap evicts sessions idle longer than maxIdle and returns how many were
// removed. Callers run this on a timer; the store itself imposes no policy.
func (s *SessionStore) Reap(maxIdle time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.LastActive.Before(cutoff)
		if idle {
			sess.evicted = true
		}
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			reaped++
		}
	}
	return reaped
}
