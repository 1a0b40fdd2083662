package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Session status constants.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"
	SessionStatusExpired   = "expired"
)

// Wizard stages. Stage 0 is reserved for the terminal pseudo-stage.
const (
	StageTerminal     = 0
	StageClient       = 1
	StageItems        = 2
	StageParameters   = 3
	StageConfirmation = 4
)

// Sub-step identifiers, grouped by stage.
const (
	// Stage 1: client and basic order info.
	SubstepClientSearch  = "client_search"
	SubstepNewClientForm = "new_client_form"
	SubstepBasicInfo     = "basic_info"

	// Stage 2: item entry, repeated per item.
	SubstepItemBasicInfo   = "item_basic_info"
	SubstepCharacteristics = "characteristics"
	SubstepStainsDefects   = "stains_defects"
	SubstepPriceDiscount   = "price_discount"

	// Stage 3: order parameters.
	SubstepParameters = "parameters"

	// Stage 4: confirmation and receipt.
	SubstepOrderSummary      = "order_summary"
	SubstepLegalAspects      = "legal_aspects"
	SubstepReceiptGeneration = "receipt_generation"
	SubstepWizardCompletion  = "wizard_completion"

	// Terminal pseudo-substeps.
	SubstepCompleted = "completed"
	SubstepCancelled = "cancelled"
)

// State identifies the wizard's position as a (stage, substep) pair. It is
// a comparable value type so it can key the static transition table.
type State struct {
	Stage   int    `json:"stage"`
	Substep string `json:"substep"`
}

// Terminal reports whether the state is one of the two terminal states.
func (s State) Terminal() bool {
	return s.Stage == StageTerminal
}

// String renders the state as "stageN.substep", or just the substep for
// terminal states.
func (s State) String() string {
	if s.Stage == StageTerminal {
		return s.Substep
	}
	return fmt.Sprintf("stage%d.%s", s.Stage, s.Substep)
}

// ParseState parses the string form produced by State.String.
func ParseState(raw string) (State, error) {
	if raw == SubstepCompleted || raw == SubstepCancelled {
		return State{Stage: StageTerminal, Substep: raw}, nil
	}
	dot := strings.IndexByte(raw, '.')
	if dot <= 0 || !strings.HasPrefix(raw, "stage") {
		return State{}, fmt.Errorf("invalid state %q", raw)
	}
	stage, err := strconv.Atoi(raw[len("stage"):dot])
	if err != nil || stage < StageClient || stage > StageConfirmation {
		return State{}, fmt.Errorf("invalid state %q", raw)
	}
	return State{Stage: stage, Substep: raw[dot+1:]}, nil
}

// Initial wizard state.
var StateInitial = State{Stage: StageClient, Substep: SubstepClientSearch}

// Terminal wizard states.
var (
	StateCompleted = State{Stage: StageTerminal, Substep: SubstepCompleted}
	StateCancelled = State{Stage: StageTerminal, Substep: SubstepCancelled}
)

// WizardSession is the server-side record of one in-progress order. Exactly
// one session exists per in-progress order; it is mutated only by the
// coordinator while holding the store's per-session lock.
type WizardSession struct {
	ID           string       `json:"id"`
	BranchID     string       `json:"branch_id"`
	OperatorID   string       `json:"operator_id"`
	State        State        `json:"state"`
	Status       string       `json:"status"`
	Context      OrderContext `json:"context"`
	Version      int          `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActivity time.Time    `json:"last_activity"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// Expired reports whether the session's TTL has elapsed at the given time.
func (s *WizardSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionEvent records one entry in a session's audit trail.
type SessionEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	Event     string    `json:"event"`
	ActorID   string    `json:"actor_id"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionDescriptor is the read model returned to the wizard frontend.
// RecommendedModifiers and RiskWarnings are populated only while the
// wizard sits on the price and discount sub-step.
type SessionDescriptor struct {
	ID                   string          `json:"session_id"`
	CurrentState         string          `json:"current_state"`
	Status               string          `json:"status"`
	CreatedAt            time.Time       `json:"created_at"`
	LastActivity         time.Time       `json:"last_activity"`
	AvailableEvents      []string        `json:"available_events,omitempty"`
	ContextSummary       ContextSummary  `json:"context_summary"`
	RecommendedModifiers []PriceModifier `json:"recommended_modifiers,omitempty"`
	RiskWarnings         []string        `json:"risk_warnings,omitempty"`
	History              []HistoryEntry  `json:"history,omitempty"`
}

// ContextSummary is a condensed view of the accumulated order context.
type ContextSummary struct {
	ClientName    string `json:"client_name,omitempty"`
	ItemCount     int    `json:"item_count"`
	TotalPrice    int64  `json:"total_price"`
	Expedited     bool   `json:"expedited"`
	ReceiptNumber string `json:"receipt_number,omitempty"`
	LegalAccepted bool   `json:"legal_accepted"`
}

// HistoryEntry is one rendered audit-trail row.
type HistoryEntry struct {
	State     string `json:"state"`
	Event     string `json:"event"`
	Actor     string `json:"actor"`
	Timestamp string `json:"timestamp"`
	Comment   string `json:"comment,omitempty"`
}
