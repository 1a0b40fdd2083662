package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pressline/lavanda/internal/config"
	"github.com/pressline/lavanda/internal/coordinate"
	"github.com/pressline/lavanda/internal/pricing"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config         *config.Config
	Logger         *zap.Logger
	Coordinator    *coordinate.Coordinator
	Engine         *pricing.Engine
	Catalog        *pricing.Catalog
	ReloadCatalog  func() error
	HealthHandler  http.HandlerFunc
	ReadyHandler   http.HandlerFunc
	MetricsHandler http.Handler
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// identity middleware.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(deps.Logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	// Public routes.
	r.Get("/health", deps.HealthHandler)
	r.Get("/ready", deps.ReadyHandler)
	r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, deps.MetricsHandler)

	// Operator routes: identity headers required.
	r.Group(func(r chi.Router) {
		r.Use(BuildRequestContext)
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(deps.Logger))

		r.Post("/sessions", handleSessionStart(deps.Coordinator))
		r.Get("/sessions", handleSessionList(deps.Coordinator))
		r.Get("/sessions/{sessionId}", handleSessionGet(deps.Coordinator))
		r.Post("/sessions/{sessionId}/events", handleSessionAdvance(deps.Coordinator))
		r.Post("/sessions/{sessionId}/cancel", handleSessionCancel(deps.Coordinator))
		r.Delete("/sessions/{sessionId}", handleSessionDelete(deps.Coordinator))

		r.Post("/pricing/calculate", handlePricingCalculate(deps.Engine))
		r.Get("/pricing/modifiers", handlePricingModifiers(deps.Catalog))

		r.Post("/catalog/reload", handleCatalogReload(deps.ReloadCatalog, deps.Catalog))
	})

	return r
}
