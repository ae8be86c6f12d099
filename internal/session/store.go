package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/expense-insights/internal/pipeline"
)

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

// Session is one ingested upload batch. Its dataset is read-only after creation.
type Session struct {
	ID        string
	CreatedAt time.Time
	Dataset   *pipeline.Dataset
}

// Store keeps sessions in process memory. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a session store. A ttl of zero keeps sessions until deleted.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a dataset under a fresh session ID.
func (s *Store) Create(ds *pipeline.Dataset) (*Session, error) {
	if ds == nil || ds.Current == nil {
		return nil, fmt.Errorf("Create: dataset has no current data")
	}
	sess := &Session{
		ID:        uuid.New().String(),
		CreatedAt: s.now(),
		Dataset:   ds,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return sess, nil
}

// Get returns the session with the given ID.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("Get: %s: %w", id, ErrNotFound)
	}
	if s.expired(sess) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("Get: %s: %w", id, ErrNotFound)
	}
	return sess, nil
}

// Delete removes a session. Unknown and expired IDs report ErrNotFound,
// matching Get.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("Delete: %s: %w", id, ErrNotFound)
	}
	delete(s.sessions, id)
	if s.expired(sess) {
		return fmt.Errorf("Delete: %s: %w", id, ErrNotFound)
	}
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions, expired ones included until swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.CreatedAt) > s.ttl
}
