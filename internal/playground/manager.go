package playground

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lamim/chorus/internal/api"
)

var (
	// ErrSessionNotFound is returned for an unknown session id
	ErrSessionNotFound = errors.New("session not found")
	// ErrTooManySessions is returned when the manager is full
	ErrTooManySessions = errors.New("too many open sessions")
)

// Manager owns the open playground sessions
type Manager struct {
	backend     api.Backend
	opts        Options
	maxSessions int
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager; maxSessions <= 0 means unlimited
func NewManager(backend api.Backend, opts Options, maxSessions int, logger *slog.Logger) *Manager {
	return &Manager{
		backend:     backend,
		opts:        opts,
		maxSessions: maxSessions,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

// Create opens a new session with a random id
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("%w (limit %d)", ErrTooManySessions, m.maxSessions)
	}
	id := uuid.New().String()
	s := NewSession(id, m.backend, m.opts, m.logger)
	m.sessions[id] = s
	m.opts.Metrics.SetSessions(len(m.sessions))
	m.logger.Info("Opened playground session", "session_id", id, "open_sessions", len(m.sessions))
	return s, nil
}

// Get returns the session with id
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close closes and forgets the session with id
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		m.opts.Metrics.SetSessions(len(m.sessions))
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	m.logger.Info("Closed playground session", "session_id", id)
	return nil
}

// Len returns the number of open sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every session
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.opts.Metrics.SetSessions(0)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()
}
