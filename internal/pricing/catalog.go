// Package pricing implements the price calculation engine: the modifier
// catalog, the compiled calculation formulas, and the ordered calculation
// pipeline that turns a base catalog price plus selected modifiers into a
// final price with a reproducible breakdown.
package pricing

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/pressline/lavanda/model"
)

// CatalogItem is one priced garment in the price list. Prices are in
// minor units. DarkPrice, when set, is the explicit price for black and
// multicolor items; otherwise the catalog-level dark surcharge applies.
type CatalogItem struct {
	CategoryCode string `yaml:"category_code"`
	Name         string `yaml:"name"`
	Price        int64  `yaml:"price"`
	DarkPrice    int64  `yaml:"dark_price"`
}

// Recommendation maps a stain or defect code to suggested modifiers.
type Recommendation struct {
	Code      string   `yaml:"code"`
	Modifiers []string `yaml:"modifiers"`
}

// RiskRule maps a stain or defect code to an operator-facing warning.
// AppliesTo optionally restricts the rule to category or material codes.
type RiskRule struct {
	Code      string   `yaml:"code"`
	Warning   string   `yaml:"warning"`
	AppliesTo []string `yaml:"applies_to"`
}

// CatalogDefinition is the YAML root of the modifier catalog file.
type CatalogDefinition struct {
	DarkSurchargePercent float64                   `yaml:"dark_surcharge_percent"`
	Items                []CatalogItem             `yaml:"items"`
	Modifiers            []model.PriceModifier     `yaml:"modifiers"`
	Recommendations      []Recommendation          `yaml:"recommendations"`
	Risks                []RiskRule                `yaml:"risks"`
	DiscountTypes        []model.DiscountType      `yaml:"discount_types"`
	Formulas             []model.FormulaDefinition `yaml:"formulas"`

	// Populated by the loader.
	Checksum   string `yaml:"-"`
	SourceFile string `yaml:"-"`
}

// snapshot is an immutable view of the configured catalog. Lookups are
// read-only; a reload builds a fresh snapshot and swaps the pointer.
type snapshot struct {
	darkSurchargePercent float64
	items                map[string]CatalogItem
	modifiers            []model.PriceModifier
	modifierByCode       map[string]model.PriceModifier
	recommendations      map[string][]string
	risks                map[string]RiskRule
	discounts            map[string]model.DiscountType
	formulas             map[string]*Formula
	checksum             string
}

// Catalog is a read-optimized, thread-safe store of the configured
// modifier set. It uses atomic pointer swap for lock-free concurrent
// reads, which is all the calculation path needs since calculations never
// mutate modifier definitions.
type Catalog struct {
	snap atomic.Pointer[snapshot]
}

// NewCatalog builds a catalog from a validated definition. Formula
// compilation errors still surface here as CONFIGURATION_ERROR.
func NewCatalog(def CatalogDefinition) (*Catalog, *model.ErrorEnvelope) {
	c := &Catalog{}
	if err := c.Replace(def); err != nil {
		return nil, err
	}
	return c, nil
}

// Replace atomically swaps the catalog contents with a snapshot built
// from the given definition. In-flight calculations keep the snapshot
// they started with.
func (c *Catalog) Replace(def CatalogDefinition) *model.ErrorEnvelope {
	s := &snapshot{
		darkSurchargePercent: def.DarkSurchargePercent,
		items:                make(map[string]CatalogItem, len(def.Items)),
		modifiers:            make([]model.PriceModifier, len(def.Modifiers)),
		modifierByCode:       make(map[string]model.PriceModifier, len(def.Modifiers)),
		recommendations:      make(map[string][]string, len(def.Recommendations)),
		risks:                make(map[string]RiskRule, len(def.Risks)),
		discounts:            make(map[string]model.DiscountType, len(def.DiscountTypes)),
		formulas:             make(map[string]*Formula, len(def.Formulas)),
		checksum:             def.Checksum,
	}

	for _, it := range def.Items {
		s.items[itemKey(it.CategoryCode, it.Name)] = it
	}
	copy(s.modifiers, def.Modifiers)
	for _, m := range def.Modifiers {
		s.modifierByCode[m.Code] = m
	}
	for _, r := range def.Recommendations {
		s.recommendations[r.Code] = r.Modifiers
	}
	for _, r := range def.Risks {
		s.risks[r.Code] = r
	}
	for _, d := range def.DiscountTypes {
		s.discounts[d.Code] = d
	}
	for _, fd := range def.Formulas {
		f, err := CompileFormula(fd)
		if err != nil {
			return err
		}
		s.formulas[fd.ID] = f
	}

	c.snap.Store(s)
	return nil
}

// Checksum returns the checksum of the loaded catalog file.
func (c *Catalog) Checksum() string { return c.snap.Load().checksum }

// Loaded reports whether the catalog holds at least one priced item.
// Used by the readiness endpoint.
func (c *Catalog) Loaded() bool { return len(c.snap.Load().items) > 0 }

// BasePrice resolves the base unit price for an item, applying the dark
// variant for black or multicolor garments. Returns a CALCULATION_ERROR
// when the item is not in the price list.
func (c *Catalog) BasePrice(categoryCode, itemName, color string) (int64, *model.ErrorEnvelope) {
	s := c.snap.Load()
	it, ok := s.items[itemKey(categoryCode, itemName)]
	if !ok {
		return 0, model.NewCalculationError(
			fmt.Sprintf("no base price for item %q in category %q", itemName, categoryCode),
		)
	}
	if !isDarkColor(color) {
		return it.Price, nil
	}
	if it.DarkPrice > 0 {
		return it.DarkPrice, nil
	}
	if s.darkSurchargePercent > 0 {
		return roundHalfUp(float64(it.Price) * (1 + s.darkSurchargePercent/100)), nil
	}
	return it.Price, nil
}

// Modifier resolves a modifier by code.
func (c *Catalog) Modifier(code string) (model.PriceModifier, bool) {
	m, ok := c.snap.Load().modifierByCode[code]
	return m, ok
}

// ApplicableModifiers returns the active modifiers applicable to a
// category/material combination, in catalog-declared order. An empty
// applicability list means the modifier applies everywhere.
func (c *Catalog) ApplicableModifiers(categoryCode, material string) []model.PriceModifier {
	s := c.snap.Load()
	var out []model.PriceModifier
	for _, m := range s.modifiers {
		if m.Active && modifierApplies(m, categoryCode, material) {
			out = append(out, m)
		}
	}
	return out
}

// ModifiersInDeclaredOrder returns the catalog's modifiers filtered to
// the given codes, in catalog-declared order. The engine uses this to
// apply FIXED and ADDITION modifiers deterministically.
func (c *Catalog) ModifiersInDeclaredOrder(codes map[string]bool) []model.PriceModifier {
	s := c.snap.Load()
	var out []model.PriceModifier
	for _, m := range s.modifiers {
		if codes[m.Code] {
			out = append(out, m)
		}
	}
	return out
}

// RecommendedModifiers returns the modifiers the recommendation table
// suggests for the observed stains and defects, filtered by
// applicability. This is a rule lookup, not a search.
func (c *Catalog) RecommendedModifiers(stains, defects []string, categoryCode, material string) []model.PriceModifier {
	s := c.snap.Load()
	seen := make(map[string]bool)
	var out []model.PriceModifier
	for _, code := range append(append([]string{}, stains...), defects...) {
		for _, modCode := range s.recommendations[code] {
			if seen[modCode] {
				continue
			}
			seen[modCode] = true
			m, ok := s.modifierByCode[modCode]
			if ok && m.Active && modifierApplies(m, categoryCode, material) {
				out = append(out, m)
			}
		}
	}
	return out
}

// RiskWarnings returns the operator-facing warnings for the observed
// stains and defects. Table-driven, side effect free.
func (c *Catalog) RiskWarnings(stains, defects []string, categoryCode, material string) []string {
	s := c.snap.Load()
	seen := make(map[string]bool)
	var out []string
	for _, code := range append(append([]string{}, stains...), defects...) {
		r, ok := s.risks[code]
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		if !ruleApplies(r.AppliesTo, categoryCode, material) {
			continue
		}
		out = append(out, r.Warning)
	}
	return out
}

// DiscountType resolves a discount type by code.
func (c *Catalog) DiscountType(code string) (model.DiscountType, bool) {
	d, ok := c.snap.Load().discounts[code]
	return d, ok
}

// Formula resolves a compiled formula by ID.
func (c *Catalog) Formula(id string) (*Formula, bool) {
	f, ok := c.snap.Load().formulas[id]
	return f, ok
}

func itemKey(categoryCode, itemName string) string {
	return strings.ToLower(categoryCode) + "/" + strings.ToLower(itemName)
}

// isDarkColor classifies a color as requiring the dark price variant.
func isDarkColor(color string) bool {
	switch strings.ToLower(strings.TrimSpace(color)) {
	case "black", "multicolor", "multicolour":
		return true
	}
	return false
}

func modifierApplies(m model.PriceModifier, categoryCode, material string) bool {
	if m.CategoryScope != "" && !strings.EqualFold(m.CategoryScope, categoryCode) {
		return false
	}
	return ruleApplies(m.AppliesTo, categoryCode, material)
}

// ruleApplies checks an applicability list. Empty means applies to all.
func ruleApplies(appliesTo []string, categoryCode, material string) bool {
	if len(appliesTo) == 0 {
		return true
	}
	for _, a := range appliesTo {
		if strings.EqualFold(a, categoryCode) || strings.EqualFold(a, material) {
			return true
		}
	}
	return false
}
