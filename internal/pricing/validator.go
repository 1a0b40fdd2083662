package pricing

import (
	"fmt"

	"github.com/pressline/lavanda/model"
)

// VError describes a single validation error in a catalog definition.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validator validates catalog definitions structurally and referentially.
// A definition that passes Validate will not produce configuration errors
// later; malformed modifiers and formulas are rejected before the catalog
// is made available to calculation.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the whole catalog definition and returns all errors.
func (v *Validator) Validate(def CatalogDefinition) []VError {
	var errs []VError

	itemKeys := make(map[string]bool, len(def.Items))
	for i, it := range def.Items {
		p := fmt.Sprintf("items[%d]", i)
		if it.CategoryCode == "" {
			errs = append(errs, VError{Path: p + ".category_code", Code: "REQUIRED", Message: "category_code is required"})
		}
		if it.Name == "" {
			errs = append(errs, VError{Path: p + ".name", Code: "REQUIRED", Message: "name is required"})
		}
		if it.Price <= 0 {
			errs = append(errs, VError{Path: p + ".price", Code: "INVALID", Message: "price must be positive"})
		}
		if it.DarkPrice < 0 {
			errs = append(errs, VError{Path: p + ".dark_price", Code: "INVALID", Message: "dark_price must not be negative"})
		}
		key := itemKey(it.CategoryCode, it.Name)
		if itemKeys[key] {
			errs = append(errs, VError{Path: p, Code: "DUPLICATE", Message: fmt.Sprintf("duplicate item %q in category %q", it.Name, it.CategoryCode)})
		}
		itemKeys[key] = true
	}

	modifierCodes := make(map[string]bool, len(def.Modifiers))
	for i, m := range def.Modifiers {
		p := fmt.Sprintf("modifiers[%d]", i)
		errs = append(errs, v.validateModifier(p, m)...)
		if m.Code != "" {
			if modifierCodes[m.Code] {
				errs = append(errs, VError{Path: p + ".code", Code: "DUPLICATE", Message: fmt.Sprintf("duplicate modifier code %q", m.Code)})
			}
			modifierCodes[m.Code] = true
		}
	}

	for i, r := range def.Recommendations {
		p := fmt.Sprintf("recommendations[%d]", i)
		if r.Code == "" {
			errs = append(errs, VError{Path: p + ".code", Code: "REQUIRED", Message: "code is required"})
		}
		for j, mc := range r.Modifiers {
			if !modifierCodes[mc] {
				errs = append(errs, VError{
					Path:    fmt.Sprintf("%s.modifiers[%d]", p, j),
					Code:    "UNKNOWN_REF",
					Message: fmt.Sprintf("recommendation references unknown modifier %q", mc),
				})
			}
		}
	}

	for i, r := range def.Risks {
		if r.Code == "" || r.Warning == "" {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("risks[%d]", i),
				Code:    "REQUIRED",
				Message: "code and warning are required",
			})
		}
	}

	discountCodes := make(map[string]bool, len(def.DiscountTypes))
	for i, d := range def.DiscountTypes {
		p := fmt.Sprintf("discount_types[%d]", i)
		if d.Code == "" {
			errs = append(errs, VError{Path: p + ".code", Code: "REQUIRED", Message: "code is required"})
		}
		if d.MaxPercent < 0 || d.MaxPercent > 100 {
			errs = append(errs, VError{Path: p + ".max_percent", Code: "INVALID", Message: "max_percent must be between 0 and 100"})
		}
		if discountCodes[d.Code] {
			errs = append(errs, VError{Path: p + ".code", Code: "DUPLICATE", Message: fmt.Sprintf("duplicate discount type %q", d.Code)})
		}
		discountCodes[d.Code] = true
	}

	formulaIDs := make(map[string]bool, len(def.Formulas))
	for i, fd := range def.Formulas {
		p := fmt.Sprintf("formulas[%d]", i)
		if fd.ID == "" {
			errs = append(errs, VError{Path: p + ".id", Code: "REQUIRED", Message: "id is required"})
		}
		if formulaIDs[fd.ID] {
			errs = append(errs, VError{Path: p + ".id", Code: "DUPLICATE", Message: fmt.Sprintf("duplicate formula id %q", fd.ID)})
		}
		formulaIDs[fd.ID] = true
		// CompileFormula owns the per-variant parameter checks, including
		// range band overlap and expression parsing.
		if _, cerr := CompileFormula(fd); cerr != nil {
			errs = append(errs, VError{Path: p, Code: "INVALID", Message: cerr.Message})
		}
	}

	return errs
}

func (v *Validator) validateModifier(p string, m model.PriceModifier) []VError {
	var errs []VError

	if m.Code == "" {
		errs = append(errs, VError{Path: p + ".code", Code: "REQUIRED", Message: "code is required"})
	}
	if m.Name == "" {
		errs = append(errs, VError{Path: p + ".name", Code: "REQUIRED", Message: "name is required"})
	}

	switch m.Type {
	case model.ModifierPercentage, model.ModifierAddition, model.ModifierFixed:
		if m.MinValue != 0 || m.MaxValue != 0 {
			errs = append(errs, VError{
				Path:    p,
				Code:    "INVALID",
				Message: fmt.Sprintf("%s modifiers take a single value, not a range", m.Type),
			})
		}
	case model.ModifierRangePercentage:
		if m.MinValue > m.MaxValue {
			errs = append(errs, VError{
				Path:    p,
				Code:    "INVALID",
				Message: fmt.Sprintf("range modifier %q has min %v > max %v", m.Code, m.MinValue, m.MaxValue),
			})
		}
	default:
		errs = append(errs, VError{
			Path:    p + ".type",
			Code:    "INVALID",
			Message: fmt.Sprintf("unknown modifier type %q", m.Type),
		})
	}

	return errs
}
