// Package session persists wizard sessions and their audit events.
package session

import (
	"context"
	"time"

	"github.com/pressline/lavanda/model"
)

// Store persists wizard sessions and events.
type Store interface {
	// Lock acquires the mutex for one session and returns its release
	// function. Callers mutating a session (advance, cancel, sweep,
	// delete) hold its lock across the read-modify-write so two in-flight
	// requests on the same session serialize. Locks are per session ID;
	// work on different sessions never contends.
	Lock(sessionID string) func()

	// Create persists a new wizard session.
	Create(ctx context.Context, sess model.WizardSession) error

	// Get retrieves a session by ID, scoped to a branch. Returns
	// SESSION_NOT_FOUND if the session doesn't exist or belongs to a
	// different branch. Sessions past their TTL are returned so callers
	// can distinguish SESSION_EXPIRED from SESSION_NOT_FOUND.
	Get(ctx context.Context, branchID, sessionID string) (model.WizardSession, error)

	// Update persists an updated session with optimistic locking. The
	// version must match the current stored version. Returns CONFLICT if
	// the version has changed.
	Update(ctx context.Context, sess model.WizardSession) error

	// AppendEvent adds an event to the session's audit trail.
	AppendEvent(ctx context.Context, event model.SessionEvent) error

	// GetEvents retrieves all events for a session, scoped to a branch,
	// ordered by timestamp.
	GetEvents(ctx context.Context, branchID, sessionID string) ([]model.SessionEvent, error)

	// FindActive returns active sessions for a branch.
	FindActive(ctx context.Context, branchID string, filters Filters) ([]model.WizardSession, error)

	// FindExpired returns active sessions whose expires_at is before the
	// given cutoff time.
	FindExpired(ctx context.Context, cutoff time.Time) ([]model.WizardSession, error)

	// Delete removes a session and its events.
	Delete(ctx context.Context, branchID, sessionID string) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// Filters are optional filters for listing sessions.
type Filters struct {
	OperatorID string
	Status     string
	Limit      int
	Offset     int
}
