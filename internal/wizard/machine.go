// Package wizard defines the order wizard's finite-state machine: states,
// events, and the static transition table. The package is pure; it returns
// decisions and never performs side effects. All mutable wizard state
// lives in the session store, keyed by session ID, so concurrent sessions
// never share a machine.
package wizard

import (
	"fmt"

	"github.com/pressline/lavanda/model"
)

// Wizard events.
const (
	EventClientSelected           = "CLIENT_SELECTED"
	EventNewClient                = "NEW_CLIENT"
	EventClientCreated            = "CLIENT_CREATED"
	EventBasicInfoConfirmed       = "BASIC_INFO_CONFIRMED"
	EventItemInfoConfirmed        = "ITEM_INFO_CONFIRMED"
	EventCharacteristicsConfirmed = "CHARACTERISTICS_CONFIRMED"
	EventStainsDefectsConfirmed   = "STAINS_DEFECTS_CONFIRMED"
	EventAddItem                  = "ADD_ITEM"
	EventItemsDone                = "ITEMS_DONE"
	EventParametersConfirmed      = "PARAMETERS_CONFIRMED"
	EventRemoveItem               = "REMOVE_ITEM"
	EventSummaryConfirmed         = "SUMMARY_CONFIRMED"
	EventLegalAccepted            = "LEGAL_ACCEPTED"
	EventReceiptGenerated         = "RECEIPT_GENERATED"
	EventComplete                 = "COMPLETE"
	EventGoBack                   = "GO_BACK"
	EventCancel                   = "CANCEL"
)

// Shorthand state values used by the tables below.
var (
	stClientSearch  = model.State{Stage: model.StageClient, Substep: model.SubstepClientSearch}
	stNewClientForm = model.State{Stage: model.StageClient, Substep: model.SubstepNewClientForm}
	stBasicInfo     = model.State{Stage: model.StageClient, Substep: model.SubstepBasicInfo}

	stItemBasicInfo   = model.State{Stage: model.StageItems, Substep: model.SubstepItemBasicInfo}
	stCharacteristics = model.State{Stage: model.StageItems, Substep: model.SubstepCharacteristics}
	stStainsDefects   = model.State{Stage: model.StageItems, Substep: model.SubstepStainsDefects}
	stPriceDiscount   = model.State{Stage: model.StageItems, Substep: model.SubstepPriceDiscount}

	stParameters = model.State{Stage: model.StageParameters, Substep: model.SubstepParameters}

	stOrderSummary      = model.State{Stage: model.StageConfirmation, Substep: model.SubstepOrderSummary}
	stLegalAspects      = model.State{Stage: model.StageConfirmation, Substep: model.SubstepLegalAspects}
	stReceiptGeneration = model.State{Stage: model.StageConfirmation, Substep: model.SubstepReceiptGeneration}
	stWizardCompletion  = model.State{Stage: model.StageConfirmation, Substep: model.SubstepWizardCompletion}
)

type transitionKey struct {
	state model.State
	event string
}

// transitions is the static transition table. A transition is legal only
// if its (state, event) pair is present here; unknown pairs are rejected,
// never defaulted.
var transitions = map[transitionKey]model.State{
	// Stage 1: client and basic info.
	{stClientSearch, EventClientSelected}:  stBasicInfo,
	{stClientSearch, EventNewClient}:       stNewClientForm,
	{stNewClientForm, EventClientCreated}:  stBasicInfo,
	{stBasicInfo, EventBasicInfoConfirmed}: stItemBasicInfo,

	// Stage 2: item entry, looping on ADD_ITEM.
	{stItemBasicInfo, EventItemInfoConfirmed}:          stCharacteristics,
	{stCharacteristics, EventCharacteristicsConfirmed}: stStainsDefects,
	{stStainsDefects, EventStainsDefectsConfirmed}:     stPriceDiscount,
	{stPriceDiscount, EventAddItem}:                    stItemBasicInfo,
	{stPriceDiscount, EventItemsDone}:                  stParameters,

	// Stage 3: parameters.
	{stParameters, EventParametersConfirmed}: stOrderSummary,

	// Stage 4: confirmation and receipt. REMOVE_ITEM edits the summary
	// in place.
	{stOrderSummary, EventRemoveItem}:            stOrderSummary,
	{stOrderSummary, EventSummaryConfirmed}:      stLegalAspects,
	{stLegalAspects, EventLegalAccepted}:         stReceiptGeneration,
	{stReceiptGeneration, EventReceiptGenerated}: stWizardCompletion,
	{stWizardCompletion, EventComplete}:          model.StateCompleted,
}

// predecessors defines where GO_BACK lands. States absent from this table
// reject GO_BACK. Receipt generation is a point of no return.
var predecessors = map[model.State]model.State{
	stNewClientForm:   stClientSearch,
	stBasicInfo:       stClientSearch,
	stItemBasicInfo:   stBasicInfo,
	stCharacteristics: stItemBasicInfo,
	stStainsDefects:   stCharacteristics,
	stPriceDiscount:   stStainsDefects,
	stParameters:      stPriceDiscount,
	stOrderSummary:    stParameters,
	stLegalAspects:    stOrderSummary,
}

// Transition computes the next state for an event, or a
// TRANSITION_REJECTED error when the event is not legal in the current
// state. No side effects; the coordinator persists accepted decisions.
func Transition(current model.State, event string) (model.State, *model.ErrorEnvelope) {
	if current.Terminal() {
		return model.State{}, model.NewTransitionRejectedError(
			fmt.Sprintf("session is in terminal state %q", current),
		)
	}

	switch event {
	case EventCancel:
		return model.StateCancelled, nil
	case EventGoBack:
		prev, ok := predecessors[current]
		if !ok {
			return model.State{}, model.NewTransitionRejectedError(
				fmt.Sprintf("cannot go back from state %q", current),
			)
		}
		return prev, nil
	}

	next, ok := transitions[transitionKey{state: current, event: event}]
	if !ok {
		return model.State{}, model.NewTransitionRejectedError(
			fmt.Sprintf("event %q is not valid in state %q", event, current),
		)
	}
	return next, nil
}

// LegalEvents returns the events accepted in the given state, in a fixed
// order. Used by the session descriptor so the frontend can render the
// right controls.
func LegalEvents(current model.State) []string {
	if current.Terminal() {
		return nil
	}
	var events []string
	for _, ev := range allEvents {
		if _, ok := transitions[transitionKey{state: current, event: ev}]; ok {
			events = append(events, ev)
		}
	}
	if _, ok := predecessors[current]; ok {
		events = append(events, EventGoBack)
	}
	events = append(events, EventCancel)
	return events
}

// allEvents fixes the enumeration order for LegalEvents.
var allEvents = []string{
	EventClientSelected,
	EventNewClient,
	EventClientCreated,
	EventBasicInfoConfirmed,
	EventItemInfoConfirmed,
	EventCharacteristicsConfirmed,
	EventStainsDefectsConfirmed,
	EventAddItem,
	EventItemsDone,
	EventParametersConfirmed,
	EventRemoveItem,
	EventSummaryConfirmed,
	EventLegalAccepted,
	EventReceiptGenerated,
	EventComplete,
}
