package transport

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pressline/lavanda/internal/pricing"
	"github.com/pressline/lavanda/model"
)

func handlePricingCalculate(engine *pricing.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.CalculationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		result, cerr := engine.Calculate(req)
		if cerr != nil {
			WriteError(w, cerr)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

func handlePricingModifiers(catalog *pricing.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		categoryCode := q.Get("category_code")
		material := q.Get("material")
		stains := splitCodes(q.Get("stains"))
		defects := splitCodes(q.Get("defects"))

		modifiers := catalog.ApplicableModifiers(categoryCode, material)
		WriteJSON(w, http.StatusOK, map[string]any{
			"data":                  modifiers,
			"count":                 len(modifiers),
			"recommended_modifiers": catalog.RecommendedModifiers(stains, defects, categoryCode, material),
			"risk_warnings":         catalog.RiskWarnings(stains, defects, categoryCode, material),
		})
	}
}

// splitCodes parses a comma-separated query parameter into codes,
// dropping empty entries.
func splitCodes(raw string) []string {
	if raw == "" {
		return nil
	}
	var codes []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

func handleCatalogReload(reload func() error, catalog *pricing.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reload == nil {
			WriteError(w, model.NewBadRequestError("catalog reload is not configured"))
			return
		}
		if err := reload(); err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":   "reloaded",
			"checksum": catalog.Checksum(),
		})
	}
}
