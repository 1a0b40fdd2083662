package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	pricingDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Wizard metrics
	SessionsStartedTotal    prometheus.Counter
	SessionTransitionsTotal *prometheus.CounterVec
	SessionCompletionsTotal *prometheus.CounterVec
	SessionsExpiredTotal    prometheus.Counter
	ActiveSessions          prometheus.Gauge
	ValidationFailuresTotal *prometheus.CounterVec

	// Pricing metrics
	CalculationsTotal   *prometheus.CounterVec
	CalculationDuration prometheus.Histogram

	// Catalog metrics
	CatalogReloadTotal *prometheus.CounterVec
	CatalogItemsLoaded prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lavanda_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lavanda_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lavanda_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lavanda_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Wizard
		SessionsStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lavanda_wizard_sessions_started_total",
			Help: "Total number of wizard sessions started.",
		}),
		SessionTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lavanda_wizard_transitions_total",
			Help: "Total number of wizard transition attempts.",
		}, []string{"event", "result"}),
		SessionCompletionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lavanda_wizard_completions_total",
			Help: "Total number of wizard sessions reaching a terminal state.",
		}, []string{"final_status"}),
		SessionsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lavanda_wizard_sessions_expired_total",
			Help: "Total number of wizard sessions expired by the sweeper.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lavanda_wizard_active_sessions",
			Help: "Number of active wizard sessions.",
		}),
		ValidationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lavanda_wizard_validation_failures_total",
			Help: "Total number of sub-step validation failures.",
		}, []string{"event"}),

		// Pricing
		CalculationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lavanda_pricing_calculations_total",
			Help: "Total number of price calculations.",
		}, []string{"result"}),
		CalculationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lavanda_pricing_calculation_duration_seconds",
			Help:    "Price calculation duration in seconds.",
			Buckets: pricingDurationBuckets,
		}),

		// Catalog
		CatalogReloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lavanda_catalog_reload_total",
			Help: "Total catalog reloads.",
		}, []string{"status"}),
		CatalogItemsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lavanda_catalog_items_loaded",
			Help: "Number of loaded catalog items.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Wizard
		m.SessionsStartedTotal,
		m.SessionTransitionsTotal,
		m.SessionCompletionsTotal,
		m.SessionsExpiredTotal,
		m.ActiveSessions,
		m.ValidationFailuresTotal,
		// Pricing
		m.CalculationsTotal,
		m.CalculationDuration,
		// Catalog
		m.CatalogReloadTotal,
		m.CatalogItemsLoaded,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordSessionStart records a wizard session start.
func (m *Metrics) RecordSessionStart() {
	m.SessionsStartedTotal.Inc()
	m.ActiveSessions.Inc()
}

// RecordTransition records a wizard transition attempt and its result.
func (m *Metrics) RecordTransition(event, result string) {
	m.SessionTransitionsTotal.WithLabelValues(event, result).Inc()
}

// RecordSessionCompletion records a session reaching a terminal state.
func (m *Metrics) RecordSessionCompletion(finalStatus string) {
	m.SessionCompletionsTotal.WithLabelValues(finalStatus).Inc()
	m.ActiveSessions.Dec()
}

// RecordSessionExpired records a session expired by the sweeper.
func (m *Metrics) RecordSessionExpired() {
	m.SessionsExpiredTotal.Inc()
	m.ActiveSessions.Dec()
}

// RecordValidationFailure records a sub-step validation failure.
func (m *Metrics) RecordValidationFailure(event string) {
	m.ValidationFailuresTotal.WithLabelValues(event).Inc()
}

// RecordCalculation records a price calculation and its duration.
func (m *Metrics) RecordCalculation(result string, duration time.Duration) {
	m.CalculationsTotal.WithLabelValues(result).Inc()
	m.CalculationDuration.Observe(duration.Seconds())
}

// RecordCatalogReload records a catalog reload attempt.
func (m *Metrics) RecordCatalogReload(status string) {
	m.CatalogReloadTotal.WithLabelValues(status).Inc()
}

// SetCatalogItemsLoaded sets the number of loaded catalog items.
func (m *Metrics) SetCatalogItemsLoaded(count float64) {
	m.CatalogItemsLoaded.Set(count)
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
