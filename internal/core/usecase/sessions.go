package usecase

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kirillkom/docuchat/internal/core/domain"
)

// SessionManager owns the live sessions. Turns within one session are
// strictly serialized: Acquire holds the session's lock until the returned
// release func runs, so a second concurrent request for the same session
// waits for the first instead of interleaving registry or memory mutations.
// Distinct sessions proceed fully in parallel.
type SessionManager struct {
	mu           sync.RWMutex
	sessions     map[string]*sessionSlot
	memoryWindow int
}

type sessionSlot struct {
	turnMu  sync.Mutex
	session *domain.Session
}

func NewSessionManager(memoryWindow int) *SessionManager {
	return &SessionManager{
		sessions:     make(map[string]*sessionSlot),
		memoryWindow: memoryWindow,
	}
}

// Acquire returns the session (creating it on first interaction) with its
// turn lock held. The caller must invoke release exactly once.
//
// Naming a scope that differs from the live session's starts the session
// over: citation ids, memory, and facts never carry across collections. An
// empty requested scope keeps the current one.
func (m *SessionManager) Acquire(sessionID, scope string) (*domain.Session, func()) {
	slot := m.slot(sessionID, scope)
	slot.turnMu.Lock()
	if scope != "" && slot.session.Scope != scope {
		slot.session = domain.NewSession(sessionID, scope, m.memoryWindow)
	}
	return slot.session, slot.turnMu.Unlock
}

func (m *SessionManager) slot(sessionID, scope string) *sessionSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot, ok := m.sessions[sessionID]; ok {
		return slot
	}
	slot := &sessionSlot{session: domain.NewSession(sessionID, scope, m.memoryWindow)}
	m.sessions[sessionID] = slot
	return slot
}

// NewID allocates a session identifier.
func (m *SessionManager) NewID() string {
	return uuid.NewString()
}

// Reset destroys the session's registry, memory, and facts. Used for clear
// chat and scope switches; waits for an in-flight turn to finish first.
func (m *SessionManager) Reset(sessionID string) error {
	m.mu.RLock()
	slot, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	slot.turnMu.Lock()
	defer slot.turnMu.Unlock()
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
