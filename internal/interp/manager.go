package interp

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ternarybob/safeexec/pkg/sandbox"
)

type backendFactory func(*sandbox.Surface) (Backend, error)

// Manager tracks the set of live interpreter sessions, keyed by an
// unguessable id. It mirrors the store pattern the rest of this codebase
// uses for other long-lived, concurrently-accessed registries: a mutex
// guarding a plain map, no background sweeper, disposal left explicit to
// the caller.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	newSurface func() *sandbox.Surface
	newBackend backendFactory
	wrapCode   bool
}

// NewManager builds a session manager backed by real yaegi interpreters.
// newSurface is invoked once per Create call so every session gets an
// independent capability surface (classified-path, strict-mode and chat
// configuration is shared, but each surface's capability instances and
// their revocation state are not).
func NewManager(newSurface func() *sandbox.Surface, wrapCode bool) *Manager {
	return newManagerWithBackend(newSurface, wrapCode, func(s *sandbox.Surface) (Backend, error) {
		return newYaegiBackend(s)
	})
}

func newManagerWithBackend(newSurface func() *sandbox.Surface, wrapCode bool, newBackend backendFactory) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		newSurface: newSurface,
		newBackend: newBackend,
		wrapCode:   wrapCode,
	}
}

// NewManagerForTesting builds a Manager around a caller-supplied Backend
// constructor, bypassing the embedded yaegi interpreter. Exported so other
// packages (the broker's tests in particular) can exercise session
// lifecycle wiring deterministically without depending on the interpreter.
func NewManagerForTesting(newSurface func() *sandbox.Surface, wrapCode bool, newBackend func(*sandbox.Surface) (Backend, error)) *Manager {
	return newManagerWithBackend(newSurface, wrapCode, newBackend)
}

// Create starts a new session with a fresh interpreter and capability
// surface, returning its id.
func (m *Manager) Create() (string, error) {
	id := uuid.NewString()

	backend, err := m.newBackend(m.newSurface())
	if err != nil {
		return "", err
	}
	sess := newSession(id, backend, m.wrapCode)

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	return id, nil
}

// Get returns the session for id, or false if no such session exists (or
// it was already deleted).
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Delete disposes of and removes the session for id. It is a no-op if the
// id is unknown.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		sess.Dispose()
	}
	return ok
}

// ExecuteIn runs code in the named session.
func (m *Manager) ExecuteIn(id, code string) (ExecutionResult, error) {
	sess, ok := m.Get(id)
	if !ok {
		return ExecutionResult{}, &SessionError{SessionID: id}
	}
	return sess.Execute(code), nil
}

// List returns the ids of all live sessions, in no particular order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// DisposeAll disposes every live session and clears the registry. Used on
// broker shutdown.
func (m *Manager) DisposeAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Dispose()
	}
}
