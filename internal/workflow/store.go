package workflow

import (
	"errors"
	"sync"
	"time"

	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

var (
	// ErrSessionExists is returned when starting a job with an id already in use.
	ErrSessionExists = errors.New("session already exists")

	// ErrSessionNotFound is returned by query operations for unknown ids.
	ErrSessionNotFound = errors.New("session not found")
)

// SessionStore holds one record per in-flight or recently-finished analysis.
// All operations are safe for concurrent callers; reads return copies so a
// caller never observes a half-written session.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*domain.Session)}
}

func (s *SessionStore) Create(sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return ErrSessionExists
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

// Get returns a snapshot copy of the session, or nil if the id is unknown.
func (s *SessionStore) Get(id string) *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	cp := *sess
	return &cp
}

// Mutate applies fn to the stored session under the write lock and returns a
// snapshot of the result. Stages mutating shared context go through here so
// writes for the same job are serialized.
func (s *SessionStore) Mutate(id string, fn func(*domain.Session)) (*domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	fn(sess)
	cp := *sess
	return &cp, true
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// PurgeOlderThan removes sessions whose start time is older than maxAge,
// regardless of completion state, and returns the removed ids.
func (s *SessionStore) PurgeOlderThan(maxAge time.Duration, now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, sess := range s.sessions {
		if now.Sub(sess.StartTime) > maxAge {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}
