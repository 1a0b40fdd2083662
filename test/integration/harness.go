// Package integration provides a reusable test harness for end-to-end
// testing of the order wizard server. It starts a full HTTP server with an
// in-memory session store and a catalog loaded from a YAML fixture.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pressline/lavanda/internal/config"
	"github.com/pressline/lavanda/internal/coordinate"
	"github.com/pressline/lavanda/internal/observability"
	"github.com/pressline/lavanda/internal/pricing"
	"github.com/pressline/lavanda/internal/session"
	"github.com/pressline/lavanda/internal/transport"
)

// defaultCatalogYAML is the pricing catalog fixture used unless a test
// provides its own.
const defaultCatalogYAML = `
dark_surcharge_percent: 20
items:
  - category_code: suits
    name: Jacket
    price: 10000
  - category_code: suits
    name: Trousers
    price: 6000
    dark_price: 7500
  - category_code: shirts
    name: Shirt
    price: 2500
modifiers:
  - code: hand_finish
    name: Hand Finishing
    type: PERCENTAGE
    value: 20
    active: true
  - code: stain_removal
    name: Stain Removal
    type: RANGE_PERCENTAGE
    min_value: 10
    max_value: 50
    active: true
  - code: button_repair
    name: Button Repair
    type: FIXED
    value: 300
    active: true
recommendations:
  - code: wine
    modifiers: [stain_removal]
risks:
  - code: wine
    warning: Old wine stains may not come out completely
discount_types:
  - code: loyalty
    name: Loyalty
    max_percent: 10
    enabled: true
`

// TestHarness encapsulates a fully wired wizard server instance.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server

	// Internal components exposed for advanced test scenarios.
	Store       *session.MemoryStore
	Catalog     *pricing.Catalog
	Engine      *pricing.Engine
	Coordinator *coordinate.Coordinator
	Metrics     *observability.Metrics

	// CatalogPath is the temp file the catalog was loaded from. Tests can
	// rewrite it and hit the reload endpoint.
	CatalogPath string

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	catalogYAML    string
	sessionTTL     time.Duration
	handlerTimeout time.Duration
}

// WithCatalogYAML replaces the default catalog fixture.
func WithCatalogYAML(content string) HarnessOption {
	return func(c *harnessConfig) {
		c.catalogYAML = content
	}
}

// WithSessionTTL sets the wizard session TTL.
func WithSessionTTL(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.sessionTTL = d
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// NewTestHarness creates and starts a full wizard server instance. The
// server is automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		catalogYAML:    defaultCatalogYAML,
		sessionTTL:     30 * time.Minute,
		handlerTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(hc)
	}

	h := &TestHarness{t: t}

	// Step 1: Write the catalog fixture and load it.
	h.CatalogPath = filepath.Join(t.TempDir(), "pricing.yaml")
	if err := os.WriteFile(h.CatalogPath, []byte(hc.catalogYAML), 0o600); err != nil {
		t.Fatalf("write catalog fixture: %v", err)
	}

	def, err := pricing.LoadCatalogFile(h.CatalogPath)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if verrs := pricing.NewValidator().Validate(def); len(verrs) > 0 {
		t.Fatalf("catalog fixture invalid: %v", verrs)
	}
	catalog, cerr := pricing.NewCatalog(def)
	if cerr != nil {
		t.Fatalf("build catalog: %v", cerr)
	}
	h.Catalog = catalog

	// Step 2: Build stores, engine, coordinator, and metrics.
	h.Store = session.NewMemoryStore()
	h.Engine = pricing.NewEngine(catalog)
	h.Metrics = observability.InitMetrics(prometheus.NewRegistry())
	h.Coordinator = coordinate.New(h.Store, catalog, h.Engine, hc.sessionTTL, h.Metrics)

	// Step 3: Build config.
	cfg := config.Defaults()
	cfg.Server.HandlerTimeout = hc.handlerTimeout
	cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.Session.TTL = hc.sessionTTL
	h.cfg = cfg

	// Step 4: Catalog reload closure, as wired in main.
	reload := func() error {
		newDef, err := pricing.LoadCatalogFile(h.CatalogPath)
		if err != nil {
			return err
		}
		if verrs := pricing.NewValidator().Validate(newDef); len(verrs) > 0 {
			return fmt.Errorf("catalog validation failed with %d errors", len(verrs))
		}
		if cerr := catalog.Replace(newDef); cerr != nil {
			return cerr
		}
		return nil
	}

	// Step 5: Build router with the full middleware chain.
	router := transport.NewRouter(transport.Dependencies{
		Config:        cfg,
		Logger:        zap.NewNop(),
		Coordinator:   h.Coordinator,
		Engine:        h.Engine,
		Catalog:       catalog,
		ReloadCatalog: reload,
		HealthHandler: observability.HandleHealth(),
		ReadyHandler: observability.HandleReady(observability.ReadinessChecks{
			CatalogLoaded: catalog.Loaded,
			SessionStore:  h.Store,
		}),
		MetricsHandler: observability.Handler(),
	})

	// Step 6: Start the test server.
	h.server = httptest.NewServer(h.Metrics.MetricsMiddleware(router))
	t.Cleanup(func() {
		h.server.Close()
	})

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// Identity is the operator identity carried in the trusted request headers.
type Identity struct {
	OperatorID string
	BranchID   string
}

// Operator returns the default test operator identity.
func Operator() Identity {
	return Identity{OperatorID: "op-ana", BranchID: "branch-1"}
}

// OtherBranchOperator returns an operator from a different branch.
func OtherBranchOperator() Identity {
	return Identity{OperatorID: "op-luis", BranchID: "branch-2"}
}

// Anonymous returns an empty identity; requests carry no identity headers.
func Anonymous() Identity {
	return Identity{}
}

// --- HTTP client helpers ---

// GET performs a GET request with the given identity.
func (h *TestHarness) GET(path string, id Identity) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, id)
}

// POST performs a POST request with a JSON body and the given identity.
func (h *TestHarness) POST(path string, body any, id Identity) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, id)
}

// DELETE performs a DELETE request with the given identity.
func (h *TestHarness) DELETE(path string, id Identity) *http.Response {
	h.t.Helper()
	return h.doRequest("DELETE", path, nil, id)
}

func (h *TestHarness) doRequest(method, path string, body any, id Identity) *http.Response {
	h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if id.OperatorID != "" {
		req.Header.Set("X-Operator-Id", id.OperatorID)
	}
	if id.BranchID != "" {
		req.Header.Set("X-Branch-Id", id.BranchID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses
// the body into target.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}
