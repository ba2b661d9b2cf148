// Package session maps session ids to independent conversion engines.
// The engine itself is single-threaded; each session serializes the
// HTTP requests that drive it behind its own lock.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"tokenswap/internal/pricebook"
	"tokenswap/internal/swap"
)

// Session is one live swap form with its own engine.
type Session struct {
	ID string

	mu       sync.Mutex
	engine   *swap.Engine
	lastSeen time.Time
}

// Do runs fn with the session's engine under the session lock and
// refreshes the idle clock.
func (s *Session) Do(fn func(e *swap.Engine)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	fn(s.engine)
}

// State snapshots the engine under the session lock.
func (s *Session) State() swap.State {
	var st swap.State
	s.Do(func(e *swap.Engine) { st = e.State() })
	return st
}

// Manager owns the session table.
type Manager struct {
	// IdleTTL evicts sessions untouched for this long; <= 0 disables.
	IdleTTL time.Duration
	// MaxSessions caps the table; 0 means unbounded. At the cap the
	// stalest session is evicted to make room.
	MaxSessions int

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(idleTTL time.Duration, maxSessions int) *Manager {
	return &Manager{
		IdleTTL:     idleTTL,
		MaxSessions: maxSessions,
		sessions:    make(map[string]*Session),
	}
}

// Create opens a session whose engine reads the given book.
func (m *Manager) Create(book *pricebook.Book) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		engine:   swap.New(book),
		lastSeen: time.Now(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	if m.MaxSessions > 0 && len(m.sessions) >= m.MaxSessions {
		m.evictStalestLocked()
	}
	m.sessions[s.ID] = s
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// SetBook fans a wholesale book replacement out to every session.
func (m *Manager) SetBook(book *pricebook.Book) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Do(func(e *swap.Engine) { e.SetBook(book) })
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// pruneLocked drops sessions idle past their TTL.
func (m *Manager) pruneLocked() {
	if m.IdleTTL <= 0 {
		return
	}
	deadline := time.Now().Add(-m.IdleTTL)
	for id, s := range m.sessions {
		s.mu.Lock()
		stale := s.lastSeen.Before(deadline)
		s.mu.Unlock()
		if stale {
			delete(m.sessions, id)
		}
	}
}

func (m *Manager) evictStalestLocked() {
	var stalestID string
	var stalest time.Time
	for id, s := range m.sessions {
		s.mu.Lock()
		seen := s.lastSeen
		s.mu.Unlock()
		if stalestID == "" || seen.Before(stalest) {
			stalestID = id
			stalest = seen
		}
	}
	if stalestID != "" {
		delete(m.sessions, stalestID)
	}
}
