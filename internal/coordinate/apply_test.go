package coordinate

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pressline/lavanda/model"
)

func TestDecodePayload(t *testing.T) {
	var p model.ClientSearchPayload
	if err := decodePayload(json.RawMessage(`{"client_id":"c-1"}`), &p); err != nil {
		t.Fatalf("decodePayload error: %v", err)
	}
	if p.ClientID != "c-1" {
		t.Errorf("ClientID = %q", p.ClientID)
	}

	// Empty data decodes as an empty object.
	var empty model.ClientSearchPayload
	if err := decodePayload(nil, &empty); err != nil {
		t.Fatalf("decodePayload(nil) error: %v", err)
	}

	// Unknown fields are rejected.
	var strict model.ClientSearchPayload
	err := decodePayload(json.RawMessage(`{"client_id":"c-1","extra":1}`), &strict)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if err.Code != model.ErrValidationError {
		t.Errorf("code = %s", err.Code)
	}

	// Malformed JSON is rejected.
	var bad model.ClientSearchPayload
	if err := decodePayload(json.RawMessage(`{"client_id":`), &bad); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestReceiptNumber(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	n := receiptNumber(now)

	if !strings.HasPrefix(n, "R-20260901-") {
		t.Errorf("receipt number = %q", n)
	}
	if len(n) != len("R-20260901-")+8 {
		t.Errorf("receipt number length = %d (%q)", len(n), n)
	}
	if n == receiptNumber(now) {
		t.Error("receipt numbers must be unique")
	}
}
