package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressline/lavanda/model"
)

// PgStore is a PostgreSQL-backed Store using pgx/v5. The accumulated order
// context is stored as JSONB.
type PgStore struct {
	pool  *pgxpool.Pool
	locks *keyedMutex
}

// NewPgStore creates a new PostgreSQL session store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, locks: newKeyedMutex()}
}

// Lock acquires the per-session mutex for sessionID. The lock serializes
// requests within one process; the version column in Update guards
// against writers on other replicas.
func (s *PgStore) Lock(sessionID string) func() {
	return s.locks.Lock(sessionID)
}

// Create inserts a new wizard session.
func (s *PgStore) Create(ctx context.Context, sess model.WizardSession) error {
	contextJSON, err := json.Marshal(sess.Context)
	if err != nil {
		return fmt.Errorf("marshal order context: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO wizard_sessions (
			id, branch_id, operator_id,
			stage, substep, status, order_context, version,
			created_at, last_activity, expires_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8,
			$9, $10, $11
		)`,
		sess.ID, sess.BranchID, sess.OperatorID,
		sess.State.Stage, sess.State.Substep, sess.Status, contextJSON, sess.Version,
		sess.CreatedAt, sess.LastActivity, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert wizard session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID, scoped to branch.
func (s *PgStore) Get(ctx context.Context, branchID, sessionID string) (model.WizardSession, error) {
	var sess model.WizardSession
	var contextJSON []byte

	err := s.pool.QueryRow(ctx, `
		SELECT id, branch_id, operator_id,
		       stage, substep, status, order_context, version,
		       created_at, last_activity, expires_at
		FROM wizard_sessions
		WHERE id = $1 AND branch_id = $2`,
		sessionID, branchID,
	).Scan(
		&sess.ID, &sess.BranchID, &sess.OperatorID,
		&sess.State.Stage, &sess.State.Substep, &sess.Status, &contextJSON, &sess.Version,
		&sess.CreatedAt, &sess.LastActivity, &sess.ExpiresAt,
	)
	if err == pgx.ErrNoRows {
		return model.WizardSession{}, model.NewSessionNotFoundError(sessionID)
	}
	if err != nil {
		return model.WizardSession{}, fmt.Errorf("query wizard session: %w", err)
	}

	if contextJSON != nil {
		if err := json.Unmarshal(contextJSON, &sess.Context); err != nil {
			return model.WizardSession{}, fmt.Errorf("unmarshal order context: %w", err)
		}
	}

	return sess, nil
}

// Update persists an updated session with optimistic locking.
func (s *PgStore) Update(ctx context.Context, sess model.WizardSession) error {
	contextJSON, err := json.Marshal(sess.Context)
	if err != nil {
		return fmt.Errorf("marshal order context: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE wizard_sessions SET
			stage = $1,
			substep = $2,
			status = $3,
			order_context = $4,
			version = $5,
			last_activity = $6,
			expires_at = $7
		WHERE id = $8 AND version = $9`,
		sess.State.Stage, sess.State.Substep, sess.Status, contextJSON, sess.Version+1,
		sess.LastActivity, sess.ExpiresAt,
		sess.ID, sess.Version,
	)
	if err != nil {
		return fmt.Errorf("update wizard session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewConflictError(
			fmt.Sprintf("wizard session %q version conflict (expected %d)", sess.ID, sess.Version),
		)
	}
	return nil
}

// AppendEvent adds an event to the session audit trail.
func (s *PgStore) AppendEvent(ctx context.Context, event model.SessionEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wizard_session_events (
			id, session_id, state, event, actor_id, comment, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.SessionID, event.State, event.Event,
		event.ActorID, event.Comment, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// GetEvents retrieves all events for a session.
func (s *PgStore) GetEvents(ctx context.Context, branchID, sessionID string) ([]model.SessionEvent, error) {
	// Verify branch access.
	if _, err := s.Get(ctx, branchID, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, state, event, actor_id, comment, created_at
		FROM wizard_session_events
		WHERE session_id = $1
		ORDER BY created_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var events []model.SessionEvent
	for rows.Next() {
		var evt model.SessionEvent
		if err := rows.Scan(
			&evt.ID, &evt.SessionID, &evt.State, &evt.Event,
			&evt.ActorID, &evt.Comment, &evt.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// FindActive returns active sessions for a branch.
func (s *PgStore) FindActive(ctx context.Context, branchID string, filters Filters) ([]model.WizardSession, error) {
	query := `SELECT id, branch_id, operator_id,
	                 stage, substep, status, order_context, version,
	                 created_at, last_activity, expires_at
	          FROM wizard_sessions
	          WHERE branch_id = $1 AND status = 'active'`
	args := []any{branchID}
	argIdx := 2

	if filters.OperatorID != "" {
		query += fmt.Sprintf(" AND operator_id = $%d", argIdx)
		args = append(args, filters.OperatorID)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filters.Limit)
		argIdx++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filters.Offset)
	}

	return s.querySessions(ctx, query, args...)
}

// FindExpired returns active sessions past their expiration time.
func (s *PgStore) FindExpired(ctx context.Context, cutoff time.Time) ([]model.WizardSession, error) {
	query := `SELECT id, branch_id, operator_id,
	                 stage, substep, status, order_context, version,
	                 created_at, last_activity, expires_at
	          FROM wizard_sessions
	          WHERE status = 'active' AND expires_at < $1
	          ORDER BY expires_at ASC`
	return s.querySessions(ctx, query, cutoff)
}

// Delete removes a session and its events.
func (s *PgStore) Delete(ctx context.Context, branchID, sessionID string) error {
	// Delete events first (foreign key).
	_, err := s.pool.Exec(ctx, `
		DELETE FROM wizard_session_events
		WHERE session_id = $1
		AND session_id IN (SELECT id FROM wizard_sessions WHERE branch_id = $2)`,
		sessionID, branchID,
	)
	if err != nil {
		return fmt.Errorf("delete session events: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		DELETE FROM wizard_sessions
		WHERE id = $1 AND branch_id = $2`,
		sessionID, branchID,
	)
	if err != nil {
		return fmt.Errorf("delete wizard session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewSessionNotFoundError(sessionID)
	}
	return nil
}

// Ping checks database connectivity.
func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// querySessions executes a query and returns wizard sessions.
func (s *PgStore) querySessions(ctx context.Context, query string, args ...any) ([]model.WizardSession, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query wizard sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.WizardSession
	for rows.Next() {
		var sess model.WizardSession
		var contextJSON []byte
		if err := rows.Scan(
			&sess.ID, &sess.BranchID, &sess.OperatorID,
			&sess.State.Stage, &sess.State.Substep, &sess.Status, &contextJSON, &sess.Version,
			&sess.CreatedAt, &sess.LastActivity, &sess.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan wizard session: %w", err)
		}
		if contextJSON != nil {
			_ = json.Unmarshal(contextJSON, &sess.Context)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
