package integration

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestHarness_Startup(t *testing.T) {
	h := NewTestHarness(t)
	if h.BaseURL() == "" {
		t.Fatal("harness should expose a base URL")
	}
	if !h.Catalog.Loaded() {
		t.Error("catalog should be loaded")
	}
}

func TestHarness_HealthEndpoints(t *testing.T) {
	h := NewTestHarness(t)

	resp := h.GET("/health", Anonymous())
	h.AssertStatus(t, resp, http.StatusOK)

	resp = h.GET("/ready", Anonymous())
	var ready struct {
		Status string `json:"status"`
	}
	h.AssertJSON(t, resp, http.StatusOK, &ready)
	if ready.Status != "ready" {
		t.Errorf("ready status = %q", ready.Status)
	}
}

func TestHarness_MetricsEndpoint(t *testing.T) {
	h := NewTestHarness(t)

	// Generate some traffic first.
	resp := h.GET("/health", Anonymous())
	resp.Body.Close()

	resp = h.GET("/metrics", Anonymous())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "go_") {
		t.Error("metrics output should contain collector samples")
	}
}

func TestHarness_IdentityRequired(t *testing.T) {
	h := NewTestHarness(t)

	resp := h.GET("/sessions", Anonymous())
	h.AssertStatus(t, resp, http.StatusBadRequest)

	resp = h.POST("/sessions", nil, Anonymous())
	h.AssertStatus(t, resp, http.StatusBadRequest)
}

func TestHarness_UnknownRoute(t *testing.T) {
	h := NewTestHarness(t)

	resp := h.GET("/orders", Operator())
	h.AssertStatus(t, resp, http.StatusNotFound)
}
