package integration

import (
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/pressline/lavanda/model"
)

func TestPricing_Calculate(t *testing.T) {
	h := NewTestHarness(t)

	var result model.CalculationResult
	h.AssertJSON(t, h.POST("/pricing/calculate", model.CalculationRequest{
		CategoryCode: "suits",
		ItemName:     "Jacket",
		Quantity:     2,
		ModifierIDs:  []string{"hand_finish"},
	}, Operator()), http.StatusOK, &result)

	// 10000 * 1.2 per unit, times two.
	if result.FinalTotalPrice != 24000 {
		t.Errorf("FinalTotalPrice = %d, want 24000", result.FinalTotalPrice)
	}
	if len(result.Details) == 0 {
		t.Error("expected a breakdown audit trail")
	}
}

func TestPricing_Calculate_darkColor(t *testing.T) {
	h := NewTestHarness(t)

	var result model.CalculationResult
	h.AssertJSON(t, h.POST("/pricing/calculate", model.CalculationRequest{
		CategoryCode: "suits",
		ItemName:     "Trousers",
		Quantity:     1,
		Color:        "black",
	}, Operator()), http.StatusOK, &result)

	// Trousers carry an explicit dark price.
	if result.FinalTotalPrice != 7500 {
		t.Errorf("FinalTotalPrice = %d, want 7500", result.FinalTotalPrice)
	}
}

func TestPricing_Calculate_unknownItem(t *testing.T) {
	h := NewTestHarness(t)

	resp := h.POST("/pricing/calculate", model.CalculationRequest{
		CategoryCode: "suits",
		ItemName:     "Cape",
		Quantity:     1,
	}, Operator())
	env := errorBody(t, h, resp, http.StatusUnprocessableEntity)
	if env.Code != model.ErrCalculationError {
		t.Errorf("code = %q", env.Code)
	}
}

func TestPricing_Modifiers(t *testing.T) {
	h := NewTestHarness(t)

	var body struct {
		Data  []model.PriceModifier `json:"data"`
		Count int                   `json:"count"`
	}
	h.AssertJSON(t, h.GET("/pricing/modifiers?category_code=suits&material=wool", Operator()),
		http.StatusOK, &body)
	if body.Count != 3 {
		t.Errorf("count = %d, want 3", body.Count)
	}
}

func TestCatalog_Reload(t *testing.T) {
	h := NewTestHarness(t)
	originalChecksum := h.Catalog.Checksum()

	// Rewrite the catalog file with a new price.
	updated := strings.Replace(defaultCatalogYAML, "price: 10000", "price: 11000", 1)
	if err := os.WriteFile(h.CatalogPath, []byte(updated), 0o600); err != nil {
		t.Fatalf("rewrite catalog: %v", err)
	}

	var body map[string]string
	h.AssertJSON(t, h.POST("/catalog/reload", nil, Operator()), http.StatusOK, &body)
	if body["status"] != "reloaded" {
		t.Errorf("status = %q", body["status"])
	}
	if body["checksum"] == originalChecksum {
		t.Error("checksum should change after reload")
	}

	// The new price is live.
	var result model.CalculationResult
	h.AssertJSON(t, h.POST("/pricing/calculate", model.CalculationRequest{
		CategoryCode: "suits",
		ItemName:     "Jacket",
		Quantity:     1,
	}, Operator()), http.StatusOK, &result)
	if result.FinalTotalPrice != 11000 {
		t.Errorf("FinalTotalPrice = %d, want 11000", result.FinalTotalPrice)
	}
}

func TestCatalog_Reload_invalidKeepsOldCatalog(t *testing.T) {
	h := NewTestHarness(t)
	originalChecksum := h.Catalog.Checksum()

	// An unparseable catalog file must be rejected.
	if err := os.WriteFile(h.CatalogPath, []byte("items: [{{("), 0o600); err != nil {
		t.Fatalf("rewrite catalog: %v", err)
	}

	resp := h.POST("/catalog/reload", nil, Operator())
	if resp.StatusCode == http.StatusOK {
		t.Error("reload of an invalid catalog should fail")
	}
	resp.Body.Close()

	if h.Catalog.Checksum() != originalChecksum {
		t.Error("old catalog should stay live after a failed reload")
	}

	// Pricing still works against the old snapshot.
	var result model.CalculationResult
	h.AssertJSON(t, h.POST("/pricing/calculate", model.CalculationRequest{
		CategoryCode: "suits",
		ItemName:     "Jacket",
		Quantity:     1,
	}, Operator()), http.StatusOK, &result)
	if result.FinalTotalPrice != 10000 {
		t.Errorf("FinalTotalPrice = %d, want 10000", result.FinalTotalPrice)
	}
}
