// Package coordinate drives wizard sessions: it loads session state,
// consults the state machine, runs sub-step validation, applies payloads
// to the order context, and persists the result. All mutation of a
// session happens here; the wizard and validate packages stay pure.
package coordinate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pressline/lavanda/internal/observability"
	"github.com/pressline/lavanda/internal/pricing"
	"github.com/pressline/lavanda/internal/session"
	"github.com/pressline/lavanda/internal/wizard"
	"github.com/pressline/lavanda/model"
)

// Coordinator orchestrates the order wizard.
type Coordinator struct {
	store   session.Store
	catalog *pricing.Catalog
	engine  *pricing.Engine
	ttl     time.Duration
	metrics *observability.Metrics
}

// New creates a new wizard coordinator. metrics may be nil.
func New(
	store session.Store,
	catalog *pricing.Catalog,
	engine *pricing.Engine,
	ttl time.Duration,
	metrics *observability.Metrics,
) *Coordinator {
	return &Coordinator{
		store:   store,
		catalog: catalog,
		engine:  engine,
		ttl:     ttl,
		metrics: metrics,
	}
}

// Start creates a new wizard session in the initial state.
func (c *Coordinator) Start(ctx context.Context, rctx *model.RequestContext) (model.SessionDescriptor, error) {
	now := time.Now().UTC()
	sess := model.WizardSession{
		ID:           uuid.New().String(),
		BranchID:     rctx.BranchID,
		OperatorID:   rctx.OperatorID,
		State:        model.StateInitial,
		Status:       model.SessionStatusActive,
		Version:      1,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(c.ttl),
	}

	if err := c.store.Create(ctx, sess); err != nil {
		return model.SessionDescriptor{}, err
	}
	if err := c.appendEvent(ctx, sess.ID, sess.State.String(), "session_started", rctx.OperatorID, ""); err != nil {
		return model.SessionDescriptor{}, err
	}

	if c.metrics != nil {
		c.metrics.RecordSessionStart()
	}
	return c.describe(sess, nil), nil
}

// Advance processes one event on a session. The session is persisted only
// when the transition is legal and the payload validates; any failure
// leaves the stored session untouched.
func (c *Coordinator) Advance(
	ctx context.Context,
	rctx *model.RequestContext,
	sessionID string,
	event string,
	data json.RawMessage,
) (model.SessionDescriptor, error) {
	// One in-flight mutation per session. The status check below runs
	// under this lock, so an advance that loses the race to a cancel or
	// sweep sees the terminal status, not a version conflict.
	unlock := c.store.Lock(sessionID)
	defer unlock()

	sess, err := c.store.Get(ctx, rctx.BranchID, sessionID)
	if err != nil {
		return model.SessionDescriptor{}, err
	}

	switch sess.Status {
	case model.SessionStatusActive:
	case model.SessionStatusExpired:
		return model.SessionDescriptor{}, model.NewSessionExpiredError(sessionID)
	default:
		return model.SessionDescriptor{}, model.NewSessionTerminatedError(sessionID, sess.Status)
	}

	now := time.Now().UTC()
	if sess.Expired(now) {
		// The sweeper has not visited this session yet; reject anyway.
		return model.SessionDescriptor{}, model.NewSessionExpiredError(sessionID)
	}

	// Validation first, then the transition gate. Both must pass; a
	// payload that fails validation reports field errors even when the
	// event would also be illegal for the current state.
	prev := sess.State
	if aerr := c.applyEvent(&sess, event, data, now); aerr != nil {
		if aerr.Code == model.ErrValidationError && c.metrics != nil {
			c.metrics.RecordValidationFailure(event)
		}
		c.recordTransition(event, "invalid")
		return model.SessionDescriptor{}, aerr
	}

	next, terr := wizard.Transition(prev, event)
	if terr != nil {
		c.recordTransition(event, "rejected")
		return model.SessionDescriptor{}, terr
	}

	sess.State = next
	sess.LastActivity = now
	sess.ExpiresAt = now.Add(c.ttl)
	switch next {
	case model.StateCompleted:
		sess.Status = model.SessionStatusCompleted
	case model.StateCancelled:
		sess.Status = model.SessionStatusCancelled
	}

	if err := c.store.Update(ctx, sess); err != nil {
		return model.SessionDescriptor{}, err
	}

	// Audit trail, only once the update committed: the event in the
	// state it was received, then the entry into the new state. A failed
	// append must not fail the advance the client already got.
	_ = c.appendEvent(ctx, sess.ID, prev.String(), event, rctx.OperatorID, "")
	_ = c.appendEvent(ctx, sess.ID, next.String(), "step_entered", "system", "")

	c.recordTransition(event, "accepted")
	if next.Terminal() && c.metrics != nil {
		c.metrics.RecordSessionCompletion(sess.Status)
	}
	return c.describe(sess, nil), nil
}

// Get returns the session descriptor, optionally with its audit history.
func (c *Coordinator) Get(
	ctx context.Context,
	rctx *model.RequestContext,
	sessionID string,
	includeHistory bool,
) (model.SessionDescriptor, error) {
	sess, err := c.store.Get(ctx, rctx.BranchID, sessionID)
	if err != nil {
		return model.SessionDescriptor{}, err
	}
	if sess.Status == model.SessionStatusActive && sess.Expired(time.Now().UTC()) {
		return model.SessionDescriptor{}, model.NewSessionExpiredError(sessionID)
	}

	var history []model.HistoryEntry
	if includeHistory {
		events, err := c.store.GetEvents(ctx, rctx.BranchID, sessionID)
		if err != nil {
			return model.SessionDescriptor{}, err
		}
		history = make([]model.HistoryEntry, 0, len(events))
		for _, evt := range events {
			history = append(history, model.HistoryEntry{
				State:     evt.State,
				Event:     evt.Event,
				Actor:     evt.ActorID,
				Timestamp: evt.Timestamp.Format(time.RFC3339),
				Comment:   evt.Comment,
			})
		}
	}

	return c.describe(sess, history), nil
}

// List returns descriptors for the branch's active sessions.
func (c *Coordinator) List(ctx context.Context, rctx *model.RequestContext, filters session.Filters) ([]model.SessionDescriptor, error) {
	sessions, err := c.store.FindActive(ctx, rctx.BranchID, filters)
	if err != nil {
		return nil, err
	}
	descriptors := make([]model.SessionDescriptor, 0, len(sessions))
	for _, sess := range sessions {
		descriptors = append(descriptors, c.describe(sess, nil))
	}
	return descriptors, nil
}

// Cancel abandons a session from any non-terminal state.
func (c *Coordinator) Cancel(ctx context.Context, rctx *model.RequestContext, sessionID string) (model.SessionDescriptor, error) {
	return c.Advance(ctx, rctx, sessionID, wizard.EventCancel, nil)
}

// Delete removes a session and its audit trail.
func (c *Coordinator) Delete(ctx context.Context, rctx *model.RequestContext, sessionID string) error {
	unlock := c.store.Lock(sessionID)
	defer unlock()
	return c.store.Delete(ctx, rctx.BranchID, sessionID)
}

// SweepExpired marks all sessions past their TTL as expired. It returns
// the number of sessions swept. Individual failures are skipped; the next
// sweep retries them.
func (c *Coordinator) SweepExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	expired, err := c.store.FindExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find expired sessions: %w", err)
	}

	swept := 0
	for _, sess := range expired {
		if c.sweepOne(ctx, sess, now) {
			swept++
		}
	}
	return swept, nil
}

// sweepOne expires a single session under its lock. The session is
// re-read inside the critical section: an advance that slipped in since
// FindExpired may have extended the TTL or finished the wizard.
func (c *Coordinator) sweepOne(ctx context.Context, candidate model.WizardSession, now time.Time) bool {
	unlock := c.store.Lock(candidate.ID)
	defer unlock()

	sess, err := c.store.Get(ctx, candidate.BranchID, candidate.ID)
	if err != nil {
		return false
	}
	if sess.Status != model.SessionStatusActive || !sess.ExpiresAt.Before(now) {
		return false
	}

	sess.Status = model.SessionStatusExpired
	if err := c.store.Update(ctx, sess); err != nil {
		// Leave it for the next sweep.
		return false
	}
	_ = c.appendEvent(ctx, sess.ID, sess.State.String(), "session_expired", "system", "")

	if c.metrics != nil {
		c.metrics.RecordSessionExpired()
	}
	return true
}

// describe builds the frontend read model for a session.
func (c *Coordinator) describe(sess model.WizardSession, history []model.HistoryEntry) model.SessionDescriptor {
	client := sess.Context.Client.Client
	d := model.SessionDescriptor{
		ID:              sess.ID,
		CurrentState:    sess.State.String(),
		Status:          sess.Status,
		CreatedAt:       sess.CreatedAt,
		LastActivity:    sess.LastActivity,
		AvailableEvents: wizard.LegalEvents(sess.State),
		ContextSummary: model.ContextSummary{
			ClientName:    strings.TrimSpace(client.FirstName + " " + client.LastName),
			ItemCount:     len(sess.Context.Items.Items),
			TotalPrice:    sess.Context.Items.TotalPrice(),
			Expedited:     sess.Context.Parameters.Expedited,
			ReceiptNumber: sess.Context.Confirmation.ReceiptNumber,
			LegalAccepted: sess.Context.Confirmation.LegalAccepted,
		},
		History: history,
	}

	// On the pricing sub-step, surface catalog hints for the draft item.
	priceStep := model.State{Stage: model.StageItems, Substep: model.SubstepPriceDiscount}
	if sess.State == priceStep && sess.Context.Items.Draft != nil {
		draft := sess.Context.Items.Draft
		d.RecommendedModifiers = c.catalog.RecommendedModifiers(
			draft.Stains, draft.Defects, draft.CategoryCode, draft.Material)
		d.RiskWarnings = c.catalog.RiskWarnings(
			draft.Stains, draft.Defects, draft.CategoryCode, draft.Material)
	}

	return d
}

func (c *Coordinator) appendEvent(ctx context.Context, sessionID, state, event, actorID, comment string) error {
	return c.store.AppendEvent(ctx, model.SessionEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		State:     state,
		Event:     event,
		ActorID:   actorID,
		Comment:   comment,
		Timestamp: time.Now().UTC(),
	})
}

func (c *Coordinator) recordTransition(event, result string) {
	if c.metrics != nil {
		c.metrics.RecordTransition(event, result)
	}
}
