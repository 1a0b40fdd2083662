package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pressline/lavanda/model"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]string{"hello": "world"})

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if xct := w.Header().Get("X-Content-Type-Options"); xct != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", xct)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["hello"] != "world" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteError_statusMapping(t *testing.T) {
	tests := []struct {
		err    *model.ErrorEnvelope
		status int
	}{
		{model.NewBadRequestError("bad"), 400},
		{model.NewNotFoundError("missing"), 404},
		{model.NewConflictError("conflict"), 409},
		{model.NewValidationError(nil), 422},
		{model.NewTransitionRejectedError("no"), 422},
		{model.NewSessionNotFoundError("s-1"), 404},
		{model.NewSessionExpiredError("s-1"), http.StatusNotFound},
		{model.NewSessionTerminatedError("s-1", model.SessionStatusCancelled), 409},
		{model.NewCalculationError("bad math"), 422},
		{model.NewConfigurationError("bad catalog"), 500},
		{model.NewInternalError(), 500},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		WriteError(w, tt.err)
		if w.Code != tt.status {
			t.Errorf("WriteError(%s) status = %d, want %d", tt.err.Code, w.Code, tt.status)
		}

		var resp struct {
			Error model.ErrorEnvelope `json:"error"`
		}
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Error.Code != tt.err.Code {
			t.Errorf("body code = %q, want %q", resp.Error.Code, tt.err.Code)
		}
	}
}

func TestWriteError_nonEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, fmt.Errorf("something went wrong"))

	if w.Code != 500 {
		t.Errorf("status = %d, want 500 for non-envelope error", w.Code)
	}

	var resp struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Error.Code != model.ErrInternalError {
		t.Errorf("code = %q, want INTERNAL_ERROR", resp.Error.Code)
	}
}

func TestWriteValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteValidationError(w, []model.FieldError{
		{Field: "phone", Code: "REQUIRED", Message: "phone is required"},
	})

	if w.Code != 422 {
		t.Errorf("status = %d, want 422", w.Code)
	}

	var resp struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Error.Details) != 1 || resp.Error.Details[0].Field != "phone" {
		t.Errorf("details = %+v", resp.Error.Details)
	}
}
