package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)
	return m, reg
}

func TestInitMetrics_registersAllMetrics(t *testing.T) {
	m, reg := newTestMetrics(t)
	if m == nil {
		t.Fatal("InitMetrics returned nil")
	}

	expected := []string{
		"lavanda_http_requests_total",
		"lavanda_http_request_duration_seconds",
		"lavanda_http_request_size_bytes",
		"lavanda_http_response_size_bytes",
		"lavanda_wizard_sessions_started_total",
		"lavanda_wizard_transitions_total",
		"lavanda_wizard_completions_total",
		"lavanda_wizard_sessions_expired_total",
		"lavanda_wizard_active_sessions",
		"lavanda_wizard_validation_failures_total",
		"lavanda_pricing_calculations_total",
		"lavanda_pricing_calculation_duration_seconds",
		"lavanda_catalog_reload_total",
		"lavanda_catalog_items_loaded",
	}

	// Record a value for each metric so they all appear in Gather.
	m.RecordHTTPRequest("GET", "/test", 200, time.Millisecond, 0, 100)
	m.RecordSessionStart()
	m.RecordTransition("CLIENT_SELECTED", "accepted")
	m.RecordSessionCompletion("completed")
	m.RecordSessionExpired()
	m.RecordValidationFailure("CLIENT_SELECTED")
	m.RecordCalculation("success", time.Millisecond)
	m.RecordCatalogReload("success")
	m.SetCatalogItemsLoaded(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordHTTPRequest("GET", "/sessions/{sessionId}", 200, 50*time.Millisecond, 0, 1024)
	m.RecordHTTPRequest("GET", "/sessions/{sessionId}", 200, 100*time.Millisecond, 0, 2048)
	m.RecordHTTPRequest("POST", "/pricing/calculate", 422, 200*time.Millisecond, 512, 256)

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/sessions/{sessionId}", "200"))
	if val != 2 {
		t.Errorf("GET requests = %v, want 2", val)
	}
	val = testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/pricing/calculate", "422"))
	if val != 1 {
		t.Errorf("POST requests = %v, want 1", val)
	}
}

func TestRecordSessionLifecycle(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordSessionStart()
	m.RecordSessionStart()
	if got := testutil.ToFloat64(m.ActiveSessions); got != 2 {
		t.Errorf("active sessions = %v, want 2", got)
	}

	m.RecordSessionCompletion("completed")
	if got := testutil.ToFloat64(m.ActiveSessions); got != 1 {
		t.Errorf("active sessions after completion = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SessionCompletionsTotal.WithLabelValues("completed")); got != 1 {
		t.Errorf("completions = %v, want 1", got)
	}

	m.RecordSessionExpired()
	if got := testutil.ToFloat64(m.ActiveSessions); got != 0 {
		t.Errorf("active sessions after expiry = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.SessionsExpiredTotal); got != 1 {
		t.Errorf("expired = %v, want 1", got)
	}
}

func TestRecordTransition(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordTransition("CLIENT_SELECTED", "accepted")
	m.RecordTransition("CLIENT_SELECTED", "rejected")
	m.RecordTransition("CLIENT_SELECTED", "accepted")

	accepted := testutil.ToFloat64(m.SessionTransitionsTotal.WithLabelValues("CLIENT_SELECTED", "accepted"))
	if accepted != 2 {
		t.Errorf("accepted = %v, want 2", accepted)
	}
	rejected := testutil.ToFloat64(m.SessionTransitionsTotal.WithLabelValues("CLIENT_SELECTED", "rejected"))
	if rejected != 1 {
		t.Errorf("rejected = %v, want 1", rejected)
	}
}

func TestRecordValidationFailure(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordValidationFailure("ITEM_INFO_CONFIRMED")
	m.RecordValidationFailure("ITEM_INFO_CONFIRMED")

	val := testutil.ToFloat64(m.ValidationFailuresTotal.WithLabelValues("ITEM_INFO_CONFIRMED"))
	if val != 2 {
		t.Errorf("validation failures = %v, want 2", val)
	}
}

func TestRecordCalculation(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordCalculation("success", 500*time.Microsecond)
	m.RecordCalculation("error", time.Millisecond)

	success := testutil.ToFloat64(m.CalculationsTotal.WithLabelValues("success"))
	if success != 1 {
		t.Errorf("success count = %v, want 1", success)
	}
	if count := testutil.CollectAndCount(m.CalculationDuration); count == 0 {
		t.Error("expected calculation duration histogram to have observations")
	}
}

func TestRecordCatalogReload(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordCatalogReload("success")
	m.RecordCatalogReload("error")

	success := testutil.ToFloat64(m.CatalogReloadTotal.WithLabelValues("success"))
	if success != 1 {
		t.Errorf("reload success = %v, want 1", success)
	}
	failure := testutil.ToFloat64(m.CatalogReloadTotal.WithLabelValues("error"))
	if failure != 1 {
		t.Errorf("reload error = %v, want 1", failure)
	}
}

func TestSetCatalogItemsLoaded(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.SetCatalogItemsLoaded(5)
	if got := testutil.ToFloat64(m.CatalogItemsLoaded); got != 5 {
		t.Errorf("items loaded = %v, want 5", got)
	}

	m.SetCatalogItemsLoaded(12)
	if got := testutil.ToFloat64(m.CatalogItemsLoaded); got != 12 {
		t.Errorf("items loaded = %v, want 12", got)
	}
}

func TestMetricsMiddleware_recordsRequestMetrics(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/sessions/{sessionId}", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"session_id":"s-1"}`))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/s-1", nil))

	// The route pattern, not the raw path, must be used as the label.
	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/sessions/{sessionId}", "200"))
	if val != 1 {
		t.Errorf("requests = %v, want 1", val)
	}
}

func TestMetricsMiddleware_capturesStatus(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Post("/pricing/calculate", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pricing/calculate",
		strings.NewReader(`{"quantity":0}`)))

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/pricing/calculate", "422"))
	if val != 1 {
		t.Errorf("requests = %v, want 1", val)
	}
}

func TestRoutePattern_fallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/raw/path", nil)
	if got := routePattern(req); got != "/raw/path" {
		t.Errorf("routePattern = %q, want /raw/path", got)
	}
}
