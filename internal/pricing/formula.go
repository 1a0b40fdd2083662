package pricing

import (
	"fmt"
	"math"
	"sort"

	"github.com/pressline/lavanda/model"
)

// Formula is a compiled calculation formula. Compilation happens once at
// configuration time; Calculate is read-only and safe for concurrent use.
type Formula struct {
	ID   string
	Name string
	Type string

	linear    *model.LinearParams
	bands     []model.RangeBand
	timeBased *model.TimeBasedParams
	expr      *Expr
}

// CompileFormula validates a formula definition and compiles it. All
// parameter errors (overlapping bands, negative rates, unparsable
// expressions) are rejected here, not at calculation time.
func CompileFormula(def model.FormulaDefinition) (*Formula, *model.ErrorEnvelope) {
	f := &Formula{ID: def.ID, Name: def.Name, Type: def.Type}

	switch def.Type {
	case model.FormulaLinear:
		if def.Linear == nil {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("formula %q: linear parameters are required", def.ID),
			)
		}
		if def.Linear.PricePerLevel < 0 {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("formula %q: price_per_level must not be negative", def.ID),
			)
		}
		f.linear = def.Linear

	case model.FormulaRange:
		if def.Range == nil || len(def.Range.Bands) == 0 {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("formula %q: at least one range band is required", def.ID),
			)
		}
		bands := make([]model.RangeBand, len(def.Range.Bands))
		copy(bands, def.Range.Bands)
		sort.Slice(bands, func(i, j int) bool { return bands[i].From < bands[j].From })
		for i, b := range bands {
			if b.From > b.To {
				return nil, model.NewConfigurationError(
					fmt.Sprintf("formula %q: band [%d,%d] has from > to", def.ID, b.From, b.To),
				)
			}
			if b.PricePerLevel < 0 {
				return nil, model.NewConfigurationError(
					fmt.Sprintf("formula %q: band [%d,%d] has negative price", def.ID, b.From, b.To),
				)
			}
			if i > 0 && b.From <= bands[i-1].To {
				return nil, model.NewConfigurationError(
					fmt.Sprintf("formula %q: bands [%d,%d] and [%d,%d] overlap",
						def.ID, bands[i-1].From, bands[i-1].To, b.From, b.To),
				)
			}
		}
		f.bands = bands

	case model.FormulaTimeBased:
		tb := def.TimeBased
		if tb == nil {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("formula %q: time_based parameters are required", def.ID),
			)
		}
		if tb.HourlyRate <= 0 {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("formula %q: hourly_rate must be positive", def.ID),
			)
		}
		if tb.BaseHours < 0 || tb.HoursPerLevel < 0 || tb.MinimumHours < 0 {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("formula %q: hours must not be negative", def.ID),
			)
		}
		if tb.ComplexityMultiplier <= 0 {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("formula %q: complexity_multiplier must be positive", def.ID),
			)
		}
		f.timeBased = tb

	case model.FormulaExpression:
		if def.Expression == "" {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("formula %q: expression is required", def.ID),
			)
		}
		expr, err := ParseExpression(def.Expression)
		if err != nil {
			return nil, model.NewConfigurationError(
				fmt.Sprintf("formula %q: %v", def.ID, err),
			)
		}
		f.expr = expr

	default:
		return nil, model.NewConfigurationError(
			fmt.Sprintf("formula %q: unknown type %q", def.ID, def.Type),
		)
	}

	return f, nil
}

// Calculate computes the formula price for boosting an item from
// fromLevel to toLevel on top of basePrice. All amounts are in minor
// units. Dispatch is by the formula's tag.
func (f *Formula) Calculate(basePrice int64, fromLevel, toLevel int) (int64, *model.ErrorEnvelope) {
	if fromLevel > toLevel {
		return 0, model.NewCalculationError(
			fmt.Sprintf("formula %q: fromLevel %d exceeds toLevel %d", f.ID, fromLevel, toLevel),
		)
	}

	switch f.Type {
	case model.FormulaLinear:
		return basePrice + int64(toLevel-fromLevel)*f.linear.PricePerLevel, nil

	case model.FormulaRange:
		var sum int64
		for _, b := range f.bands {
			lo := maxInt(fromLevel, b.From)
			hi := minInt(toLevel, b.To)
			if lo <= hi {
				sum += int64(hi-lo+1) * b.PricePerLevel
			}
		}
		return basePrice + sum, nil

	case model.FormulaTimeBased:
		tb := f.timeBased
		hours := tb.BaseHours + tb.HoursPerLevel*float64(toLevel-fromLevel)
		if hours < tb.MinimumHours {
			hours = tb.MinimumHours
		}
		price := float64(tb.HourlyRate) * hours * tb.ComplexityMultiplier / 100
		return basePrice + roundHalfUp(price), nil

	case model.FormulaExpression:
		v, err := f.expr.Eval(ExprVars{
			BasePrice: float64(basePrice),
			FromLevel: float64(fromLevel),
			ToLevel:   float64(toLevel),
		})
		if err != nil {
			return 0, model.NewCalculationError(
				fmt.Sprintf("formula %q: %v", f.ID, err),
			)
		}
		return roundHalfUp(v), nil
	}

	return 0, model.NewCalculationError(fmt.Sprintf("formula %q: unknown type %q", f.ID, f.Type))
}

// roundHalfUp rounds to the nearest whole minor unit, halves away from
// zero for positive amounts.
func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
