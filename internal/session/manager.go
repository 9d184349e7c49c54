package session

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/veryluckygirl-lab/macrogame/internal/economy"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// SeedFunc supplies seeds for sessions created without an explicit one.
type SeedFunc func() (int64, error)

// Manager holds every live session.
type Manager struct {
	model *economy.Model
	seeds SeedFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty manager. seeds may be nil, in which case
// sessions without an explicit seed get seed 0.
func NewManager(model *economy.Model, seeds SeedFunc) *Manager {
	return &Manager{
		model:    model,
		seeds:    seeds,
		sessions: make(map[string]*Session),
	}
}

// Model returns the shared model.
func (m *Manager) Model() *economy.Model {
	return m.model
}

// Create starts a new session. A nil seed draws one from the seed func.
func (m *Manager) Create(mode economy.Mode, startYear int, seed *int64) (*Session, error) {
	var sd int64
	switch {
	case seed != nil:
		sd = *seed
	case m.seeds != nil:
		v, err := m.seeds()
		if err != nil {
			return nil, err
		}
		sd = v
	}

	s := New(uuid.NewString(), sd, m.model, mode, startYear)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	slog.Info("session created", "session", s.ID, "mode", mode, "year", s.Snapshot().Year)
	return s, nil
}

// Add registers an existing session, replacing any with the same id.
func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes a session and closes its subscribers.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.closeSubscribers()
	slog.Info("session deleted", "session", id)
	return nil
}

// List returns all sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
