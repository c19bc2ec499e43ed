// Package session tracks per-visitor state with a TTL. The serve layer
// stores one live document session per HTTP visitor here; expired
// entries are dropped lazily on access and eagerly by the cleanup loop.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Session is one tracked visitor. Data carries the owner's payload and
// is never touched by the manager.
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastAccess time.Time
	Data       any
}

// Manager owns the session table.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	ttl         time.Duration
	maxSessions int
}

// NewManager creates a Manager whose sessions expire ttl after their
// last access. A zero ttl means 24 hours.
func NewManager(ttl time.Duration) *Manager {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// SetMaxSessions caps how many sessions the manager will hold. Zero
// means unlimited.
func (m *Manager) SetMaxSessions(n int) {
	m.mu.Lock()
	m.maxSessions = n
	m.mu.Unlock()
}

// Create registers a new session around data and returns it. When the
// table is at capacity, expired sessions are pruned first; if it is
// still full the create fails.
func (m *Manager) Create(data any) (*Session, error) {
	id, err := generateID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := time.Now()
	s := &Session{
		ID:         id,
		CreatedAt:  now,
		LastAccess: now,
		Data:       data,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		cutoff := now.Add(-m.ttl)
		for id, s := range m.sessions {
			if s.LastAccess.Before(cutoff) {
				delete(m.sessions, id)
			}
		}
		if len(m.sessions) >= m.maxSessions {
			return nil, fmt.Errorf("session limit reached: %d sessions", m.maxSessions)
		}
	}

	m.sessions[id] = s
	return s, nil
}

// Get returns the session and refreshes its last access time. An
// expired session is removed and reported as missing.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if time.Since(s.LastAccess) > m.ttl {
		delete(m.sessions, id)
		return nil, false
	}
	s.LastAccess = time.Now()
	return s, true
}

// Delete removes a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of tracked sessions, expired ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CleanupExpired removes every expired session and returns how many
// were dropped.
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	cutoff := time.Now().Add(-m.ttl)
	for id, s := range m.sessions {
		if s.LastAccess.Before(cutoff) {
			delete(m.sessions, id)
			count++
		}
	}
	return count
}

// StartCleanup runs CleanupExpired every interval until the returned
// stop function is called.
func (m *Manager) StartCleanup(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				m.CleanupExpired()
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}

// generateID creates a 256-bit random identifier.
func generateID() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
