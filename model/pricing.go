package model

// Modifier types.
const (
	ModifierPercentage      = "PERCENTAGE"
	ModifierFixed           = "FIXED"
	ModifierRangePercentage = "RANGE_PERCENTAGE"
	ModifierAddition        = "ADDITION"
)

// Formula variant tags.
const (
	FormulaLinear     = "LINEAR"
	FormulaRange      = "RANGE"
	FormulaTimeBased  = "TIME_BASED"
	FormulaExpression = "FORMULA"
)

// PriceModifier is a configured price adjustment rule. Prices and values
// are in currency minor units; percentages are plain percent values
// (20 means +20%).
type PriceModifier struct {
	Code          string   `json:"code" yaml:"code"`
	Name          string   `json:"name" yaml:"name"`
	Type          string   `json:"type" yaml:"type"`
	Value         float64  `json:"value,omitempty" yaml:"value"`
	MinValue      float64  `json:"min_value,omitempty" yaml:"min_value"`
	MaxValue      float64  `json:"max_value,omitempty" yaml:"max_value"`
	CategoryScope string   `json:"category_scope,omitempty" yaml:"category_scope"`
	Active        bool     `json:"active" yaml:"active"`
	// AppliesTo restricts the modifier to category or material codes.
	// Empty means the modifier applies everywhere.
	AppliesTo []string `json:"applies_to,omitempty" yaml:"applies_to"`
}

// FormulaDefinition is the tagged-union configuration of one calculation
// formula. Exactly the section matching Type is populated; the rest stay
// nil. Dispatch is by tag, never by runtime type inspection.
type FormulaDefinition struct {
	ID         string           `json:"id" yaml:"id"`
	Name       string           `json:"name" yaml:"name"`
	Type       string           `json:"type" yaml:"type"`
	Linear     *LinearParams    `json:"linear,omitempty" yaml:"linear"`
	Range      *RangeParams     `json:"range,omitempty" yaml:"range"`
	TimeBased  *TimeBasedParams `json:"time_based,omitempty" yaml:"time_based"`
	Expression string           `json:"expression,omitempty" yaml:"expression"`
}

// LinearParams parametrize base + (toLevel-fromLevel) x pricePerLevel.
type LinearParams struct {
	PricePerLevel int64 `json:"price_per_level" yaml:"price_per_level"`
}

// RangeParams hold disjoint per-level price bands.
type RangeParams struct {
	Bands []RangeBand `json:"bands" yaml:"bands"`
}

// RangeBand prices every level in [From, To] at PricePerLevel.
type RangeBand struct {
	From          int   `json:"from" yaml:"from"`
	To            int   `json:"to" yaml:"to"`
	PricePerLevel int64 `json:"price_per_level" yaml:"price_per_level"`
}

// TimeBasedParams parametrize hourlyRate x estimatedHours x
// complexityMultiplier/100, where estimatedHours = baseHours +
// hoursPerLevel x levelDiff, floored to MinimumHours.
type TimeBasedParams struct {
	HourlyRate           int64   `json:"hourly_rate" yaml:"hourly_rate"`
	BaseHours            float64 `json:"base_hours" yaml:"base_hours"`
	HoursPerLevel        float64 `json:"hours_per_level" yaml:"hours_per_level"`
	MinimumHours         float64 `json:"minimum_hours" yaml:"minimum_hours"`
	ComplexityMultiplier float64 `json:"complexity_multiplier" yaml:"complexity_multiplier"`
}

// DiscountType caps how much discount a given code may grant.
type DiscountType struct {
	Code       string  `json:"code" yaml:"code"`
	Name       string  `json:"name" yaml:"name"`
	MaxPercent float64 `json:"max_percent" yaml:"max_percent"`
	Enabled    bool    `json:"enabled" yaml:"enabled"`
}

// RangeModifierValue is the caller-selected percentage for one
// RANGE_PERCENTAGE modifier.
type RangeModifierValue struct {
	ModifierID string  `json:"modifier_id"`
	Percentage float64 `json:"percentage"`
}

// FixedModifierQuantity is the caller-selected quantity for one FIXED
// modifier.
type FixedModifierQuantity struct {
	ModifierID string `json:"modifier_id"`
	Quantity   int    `json:"quantity"`
}

// CalculationRequest is the input of one price calculation.
type CalculationRequest struct {
	CategoryCode            string                  `json:"category_code"`
	ItemName                string                  `json:"item_name"`
	Quantity                int                     `json:"quantity"`
	Color                   string                  `json:"color"`
	ModifierIDs             []string                `json:"modifier_ids"`
	RangeModifierValues     []RangeModifierValue    `json:"range_modifier_values,omitempty"`
	FixedModifierQuantities []FixedModifierQuantity `json:"fixed_modifier_quantities,omitempty"`
	Expedited               bool                    `json:"expedited"`
	ExpeditePercent         float64                 `json:"expedite_percent,omitempty"`
	DiscountPercent         float64                 `json:"discount_percent,omitempty"`
	DiscountCode            string                  `json:"discount_code,omitempty"`
}

// PriceBreakdownStep is one row of a calculation's audit trail. The list
// of steps is append-only during calculation and never mutated afterwards.
// Running prices stay in fractional minor units; only the final rounding
// step lands on a whole minor unit.
type PriceBreakdownStep struct {
	Index        int     `json:"index"`
	Name         string  `json:"name"`
	ModifierID   string  `json:"modifier_id,omitempty"`
	ModifierName string  `json:"modifier_name,omitempty"`
	Description  string  `json:"change_description"`
	PriceBefore  float64 `json:"price_before"`
	PriceAfter   float64 `json:"price_after"`
	Difference   float64 `json:"price_difference"`
}

// CalculationResult is the output of one price calculation. Prices are in
// currency minor units.
type CalculationResult struct {
	BaseUnitPrice   int64                `json:"base_unit_price"`
	Quantity        int                  `json:"quantity"`
	BaseTotalPrice  int64                `json:"base_total_price"`
	FinalUnitPrice  int64                `json:"final_unit_price"`
	FinalTotalPrice int64                `json:"final_total_price"`
	Details         []PriceBreakdownStep `json:"calculation_details"`
}
