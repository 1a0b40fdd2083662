package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pressline/lavanda/model"
)

// MemoryStore is an in-memory Store. It backs single-node deployments and
// tests. The mu field only guards the maps; per-session mutual exclusion
// across a whole read-modify-write comes from Lock.
type MemoryStore struct {
	mu       sync.RWMutex
	locks    *keyedMutex
	sessions map[string]model.WizardSession // key: session ID
	events   map[string][]model.SessionEvent
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:    newKeyedMutex(),
		sessions: make(map[string]model.WizardSession),
		events:   make(map[string][]model.SessionEvent),
	}
}

// Lock acquires the per-session mutex for sessionID.
func (s *MemoryStore) Lock(sessionID string) func() {
	return s.locks.Lock(sessionID)
}

// Create persists a new wizard session.
func (s *MemoryStore) Create(_ context.Context, sess model.WizardSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("wizard session %q already exists", sess.ID),
		)
	}

	s.sessions[sess.ID] = sess
	return nil
}

// Get retrieves a session by ID, scoped to branch.
func (s *MemoryStore) Get(_ context.Context, branchID, sessionID string) (model.WizardSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionID]
	if !exists || sess.BranchID != branchID {
		return model.WizardSession{}, model.NewSessionNotFoundError(sessionID)
	}
	return sess, nil
}

// Update persists an updated session with optimistic locking.
func (s *MemoryStore) Update(_ context.Context, sess model.WizardSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.sessions[sess.ID]
	if !exists {
		return model.NewSessionNotFoundError(sess.ID)
	}

	// Optimistic lock check.
	if existing.Version != sess.Version {
		return model.NewConflictError(
			fmt.Sprintf("wizard session %q version conflict (expected %d, got %d)",
				sess.ID, sess.Version, existing.Version),
		)
	}

	sess.Version++
	s.sessions[sess.ID] = sess
	return nil
}

// AppendEvent adds an event to the session's audit trail.
func (s *MemoryStore) AppendEvent(_ context.Context, event model.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.SessionID] = append(s.events[event.SessionID], event)
	return nil
}

// GetEvents retrieves all events for a session, ordered by timestamp.
func (s *MemoryStore) GetEvents(_ context.Context, branchID, sessionID string) ([]model.SessionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[sessionID]
	if !exists || sess.BranchID != branchID {
		return nil, model.NewSessionNotFoundError(sessionID)
	}

	events := s.events[sessionID]
	result := make([]model.SessionEvent, len(events))
	copy(result, events)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// FindActive returns active sessions for a branch.
func (s *MemoryStore) FindActive(_ context.Context, branchID string, filters Filters) ([]model.WizardSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.WizardSession
	for _, sess := range s.sessions {
		if sess.BranchID != branchID {
			continue
		}
		if sess.Status != model.SessionStatusActive {
			continue
		}
		if filters.OperatorID != "" && sess.OperatorID != filters.OperatorID {
			continue
		}
		result = append(result, sess)
	}

	// Sort by created_at descending.
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(result) {
			return []model.WizardSession{}, nil
		}
		result = result[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(result) {
		result = result[:filters.Limit]
	}

	return result, nil
}

// FindExpired returns active sessions past their expiration time.
func (s *MemoryStore) FindExpired(_ context.Context, cutoff time.Time) ([]model.WizardSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.WizardSession
	for _, sess := range s.sessions {
		if sess.Status != model.SessionStatusActive {
			continue
		}
		if !sess.ExpiresAt.Before(cutoff) {
			continue
		}
		result = append(result, sess)
	}

	// Sort by expires_at ascending.
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(result[j].ExpiresAt)
	})

	return result, nil
}

// Delete removes a session and its events.
func (s *MemoryStore) Delete(_ context.Context, branchID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[sessionID]
	if !exists || sess.BranchID != branchID {
		return model.NewSessionNotFoundError(sessionID)
	}

	delete(s.sessions, sessionID)
	delete(s.events, sessionID)
	return nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Len returns the total number of sessions. For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
