package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pressline/lavanda/model"
)

// startWizard creates a session over HTTP and returns its descriptor.
func startWizard(t *testing.T, h *TestHarness) model.SessionDescriptor {
	t.Helper()
	var desc model.SessionDescriptor
	h.AssertJSON(t, h.POST("/sessions", nil, Operator()), http.StatusCreated, &desc)
	return desc
}

// advance posts one wizard event and returns the updated descriptor.
func advance(t *testing.T, h *TestHarness, id, event string, data any) model.SessionDescriptor {
	t.Helper()
	body := map[string]any{"event": event}
	if data != nil {
		body["data"] = data
	}
	var desc model.SessionDescriptor
	h.AssertJSON(t, h.POST("/sessions/"+id+"/events", body, Operator()), http.StatusOK, &desc)
	return desc
}

// errorBody decodes the standard error envelope from a response.
func errorBody(t *testing.T, h *TestHarness, resp *http.Response, wantStatus int) model.ErrorEnvelope {
	t.Helper()
	var body struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	h.AssertJSON(t, resp, wantStatus, &body)
	return body.Error
}

func TestWizard_FullLifecycle(t *testing.T) {
	h := NewTestHarness(t)
	desc := startWizard(t, h)

	if desc.CurrentState != "stage1.client_search" {
		t.Fatalf("initial state = %q", desc.CurrentState)
	}

	advance(t, h, desc.ID, "CLIENT_SELECTED", model.ClientSearchPayload{ClientID: "c-100"})
	advance(t, h, desc.ID, "BASIC_INFO_CONFIRMED", model.BasicInfoPayload{OrderType: "standard"})
	advance(t, h, desc.ID, "ITEM_INFO_CONFIRMED", model.ItemBasicInfoPayload{
		CategoryCode: "suits", ItemName: "Jacket", Quantity: 1,
	})
	advance(t, h, desc.ID, "CHARACTERISTICS_CONFIRMED", model.CharacteristicsPayload{
		Material: "wool", Color: "navy",
	})
	advance(t, h, desc.ID, "STAINS_DEFECTS_CONFIRMED", model.StainsDefectsPayload{
		Stains: []string{"wine"},
	})
	priced := advance(t, h, desc.ID, "ITEMS_DONE", model.PriceDiscountPayload{
		ModifierIDs: []string{"hand_finish"},
	})
	if priced.ContextSummary.ItemCount != 1 {
		t.Errorf("item count = %d, want 1", priced.ContextSummary.ItemCount)
	}
	if priced.ContextSummary.TotalPrice != 12000 {
		t.Errorf("total price = %d, want 12000", priced.ContextSummary.TotalPrice)
	}

	advance(t, h, desc.ID, "PARAMETERS_CONFIRMED", model.ParametersPayload{PickupDate: "2026-09-05"})
	advance(t, h, desc.ID, "SUMMARY_CONFIRMED", model.SummaryPayload{Confirmed: true})
	advance(t, h, desc.ID, "LEGAL_ACCEPTED", model.LegalAspectsPayload{Accepted: true})
	receipt := advance(t, h, desc.ID, "RECEIPT_GENERATED", model.ReceiptPayload{Acknowledged: true})
	if !strings.HasPrefix(receipt.ContextSummary.ReceiptNumber, "R-") {
		t.Errorf("receipt number = %q, want R- prefix", receipt.ContextSummary.ReceiptNumber)
	}

	final := advance(t, h, desc.ID, "COMPLETE", nil)
	if final.CurrentState != "completed" {
		t.Errorf("final state = %q, want completed", final.CurrentState)
	}
	if final.Status != "completed" {
		t.Errorf("final status = %q, want completed", final.Status)
	}
}

func TestWizard_RecommendationsOnPriceStep(t *testing.T) {
	h := NewTestHarness(t)
	desc := startWizard(t, h)

	advance(t, h, desc.ID, "CLIENT_SELECTED", model.ClientSearchPayload{ClientID: "c-100"})
	advance(t, h, desc.ID, "BASIC_INFO_CONFIRMED", model.BasicInfoPayload{OrderType: "standard"})
	advance(t, h, desc.ID, "ITEM_INFO_CONFIRMED", model.ItemBasicInfoPayload{
		CategoryCode: "suits", ItemName: "Jacket", Quantity: 1,
	})
	advance(t, h, desc.ID, "CHARACTERISTICS_CONFIRMED", model.CharacteristicsPayload{
		Material: "wool", Color: "navy",
	})
	onPrice := advance(t, h, desc.ID, "STAINS_DEFECTS_CONFIRMED", model.StainsDefectsPayload{
		Stains: []string{"wine"},
	})

	if onPrice.CurrentState != "stage2.price_discount" {
		t.Fatalf("state = %q", onPrice.CurrentState)
	}
	if len(onPrice.RecommendedModifiers) != 1 || onPrice.RecommendedModifiers[0].Code != "stain_removal" {
		t.Errorf("recommended modifiers = %+v, want stain_removal", onPrice.RecommendedModifiers)
	}
	if len(onPrice.RiskWarnings) != 1 {
		t.Errorf("risk warnings = %v, want 1", onPrice.RiskWarnings)
	}
}

func TestWizard_GoBack(t *testing.T) {
	h := NewTestHarness(t)
	desc := startWizard(t, h)

	advance(t, h, desc.ID, "CLIENT_SELECTED", model.ClientSearchPayload{ClientID: "c-100"})
	back := advance(t, h, desc.ID, "GO_BACK", nil)
	if back.CurrentState != "stage1.client_search" {
		t.Errorf("state after go back = %q", back.CurrentState)
	}
}

func TestWizard_ValidationFailure(t *testing.T) {
	h := NewTestHarness(t)
	desc := startWizard(t, h)

	resp := h.POST("/sessions/"+desc.ID+"/events", map[string]any{
		"event": "CLIENT_SELECTED",
		"data":  map[string]any{},
	}, Operator())
	env := errorBody(t, h, resp, http.StatusUnprocessableEntity)
	if env.Code != model.ErrValidationError {
		t.Errorf("code = %q", env.Code)
	}
	if len(env.Details) == 0 {
		t.Error("expected field-level details")
	}

	// The session stays on the same step.
	var got model.SessionDescriptor
	h.AssertJSON(t, h.GET("/sessions/"+desc.ID, Operator()), http.StatusOK, &got)
	if got.CurrentState != "stage1.client_search" {
		t.Errorf("state = %q, want unchanged", got.CurrentState)
	}
}

func TestWizard_RejectedTransition(t *testing.T) {
	h := NewTestHarness(t)
	desc := startWizard(t, h)

	resp := h.POST("/sessions/"+desc.ID+"/events", map[string]any{
		"event": "COMPLETE",
	}, Operator())
	env := errorBody(t, h, resp, http.StatusUnprocessableEntity)
	if env.Code != model.ErrTransitionRejected {
		t.Errorf("code = %q", env.Code)
	}
}

func TestWizard_Cancel(t *testing.T) {
	h := NewTestHarness(t)
	desc := startWizard(t, h)

	var cancelled model.SessionDescriptor
	h.AssertJSON(t, h.POST("/sessions/"+desc.ID+"/cancel", nil, Operator()),
		http.StatusOK, &cancelled)
	if cancelled.Status != "cancelled" {
		t.Errorf("status = %q", cancelled.Status)
	}

	resp := h.POST("/sessions/"+desc.ID+"/events", map[string]any{
		"event": "CLIENT_SELECTED",
		"data":  model.ClientSearchPayload{ClientID: "c-100"},
	}, Operator())
	env := errorBody(t, h, resp, http.StatusConflict)
	if env.Code != model.ErrSessionTerminated {
		t.Errorf("code = %q", env.Code)
	}
}

func TestWizard_BranchIsolation(t *testing.T) {
	h := NewTestHarness(t)
	desc := startWizard(t, h)

	resp := h.GET("/sessions/"+desc.ID, OtherBranchOperator())
	env := errorBody(t, h, resp, http.StatusNotFound)
	if env.Code != model.ErrSessionNotFound {
		t.Errorf("code = %q", env.Code)
	}
}

func TestWizard_HistoryAuditTrail(t *testing.T) {
	h := NewTestHarness(t)
	desc := startWizard(t, h)
	advance(t, h, desc.ID, "CLIENT_SELECTED", model.ClientSearchPayload{ClientID: "c-100"})

	var got model.SessionDescriptor
	h.AssertJSON(t, h.GET("/sessions/"+desc.ID+"?history=true", Operator()),
		http.StatusOK, &got)
	if len(got.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(got.History))
	}
	if got.History[0].Event != "session_started" {
		t.Errorf("history[0] = %q", got.History[0].Event)
	}
	if got.History[1].Event != "CLIENT_SELECTED" {
		t.Errorf("history[1] = %q", got.History[1].Event)
	}
	if got.History[2].Event != "step_entered" {
		t.Errorf("history[2] = %q", got.History[2].Event)
	}
}

func TestWizard_ListSessions(t *testing.T) {
	h := NewTestHarness(t)
	for i := 0; i < 3; i++ {
		startWizard(t, h)
	}

	var body struct {
		Data  []model.SessionDescriptor `json:"data"`
		Count int                       `json:"count"`
	}
	h.AssertJSON(t, h.GET("/sessions", Operator()), http.StatusOK, &body)
	if body.Count != 3 {
		t.Errorf("count = %d, want 3", body.Count)
	}
}

func TestWizard_DeleteSession(t *testing.T) {
	h := NewTestHarness(t)
	desc := startWizard(t, h)

	resp := h.DELETE("/sessions/"+desc.ID, Operator())
	h.AssertStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = h.GET("/sessions/"+desc.ID, Operator())
	h.AssertStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestWizard_ExpiredSessionUnreachable(t *testing.T) {
	h := NewTestHarness(t)
	desc := startWizard(t, h)

	// Force the TTL to elapse through the store.
	ctx := context.Background()
	sess, err := h.Store.Get(ctx, "branch-1", desc.ID)
	if err != nil {
		t.Fatalf("store get: %v", err)
	}
	sess.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	if err := h.Store.Update(ctx, sess); err != nil {
		t.Fatalf("store update: %v", err)
	}

	resp := h.POST("/sessions/"+desc.ID+"/events", map[string]any{
		"event": "CLIENT_SELECTED",
		"data":  model.ClientSearchPayload{ClientID: "c-100"},
	}, Operator())
	env := errorBody(t, h, resp, http.StatusNotFound)
	if env.Code != model.ErrSessionExpired {
		t.Errorf("code = %q", env.Code)
	}

	// The sweeper marks it expired.
	swept, err := h.Coordinator.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}
}
