package reactive

import (
	"time"

	"github.com/vidasaras/reactive/internal/session"
)

// SessionStore keeps live sessions between requests for the HTTP
// fallback. Create stores s under a fresh identifier and returns it;
// implementations must treat the identifier as a bearer credential and
// generate it accordingly.
type SessionStore interface {
	Create(s *Session) (id string, err error)
	Get(id string) (*Session, bool)
	Delete(id string)
}

// MemorySessionStore is an in-memory SessionStore with a TTL. Sessions
// expire after going unaccessed for the TTL; visiting a page again
// simply creates a new one.
type MemorySessionStore struct {
	manager *session.Manager
}

// MemoryStoreOption configures a MemorySessionStore.
type MemoryStoreOption func(*MemorySessionStore)

// WithMaxSessions caps how many sessions the store will hold at once.
// At capacity, creating a session fails after expired ones have been
// pruned. Zero means unlimited.
func WithMaxSessions(n int) MemoryStoreOption {
	return func(ms *MemorySessionStore) {
		ms.manager.SetMaxSessions(n)
	}
}

// NewMemorySessionStore creates a store whose sessions expire ttl after
// their last access. A zero ttl means 24 hours.
func NewMemorySessionStore(ttl time.Duration, options ...MemoryStoreOption) *MemorySessionStore {
	ms := &MemorySessionStore{manager: session.NewManager(ttl)}
	for _, option := range options {
		option(ms)
	}
	return ms
}

// Create stores s and returns its new identifier.
func (ms *MemorySessionStore) Create(s *Session) (string, error) {
	inner, err := ms.manager.Create(s)
	if err != nil {
		return "", err
	}
	s.id = inner.ID
	return inner.ID, nil
}

// Get returns the session and refreshes its expiry.
func (ms *MemorySessionStore) Get(id string) (*Session, bool) {
	inner, ok := ms.manager.Get(id)
	if !ok {
		return nil, false
	}
	return inner.Data.(*Session), true
}

// Delete removes a session.
func (ms *MemorySessionStore) Delete(id string) {
	ms.manager.Delete(id)
}

// Len returns the number of stored sessions, expired ones included.
func (ms *MemorySessionStore) Len() int {
	return ms.manager.Len()
}

// CleanupExpired drops expired sessions and returns how many were
// removed.
func (ms *MemorySessionStore) CleanupExpired() int {
	return ms.manager.CleanupExpired()
}

// StartCleanup drops expired sessions every interval until the returned
// stop function is called.
func (ms *MemorySessionStore) StartCleanup(interval time.Duration) func() {
	return ms.manager.StartCleanup(interval)
}
