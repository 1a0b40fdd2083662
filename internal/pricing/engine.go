package pricing

import (
	"fmt"

	"github.com/pressline/lavanda/model"
)

// Engine computes final item prices. It is stateless apart from the
// catalog reference; a calculation never mutates shared modifier
// definitions, so Calculate is safe for concurrent use.
type Engine struct {
	catalog *Catalog
}

// NewEngine creates a price calculation engine over the given catalog.
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Calculate runs the fixed-order pricing pipeline and returns the final
// price with the full step-by-step breakdown. The same input always
// yields the same output and the same breakdown. Expected business
// failures return a CALCULATION_ERROR envelope, never a partial result.
func (e *Engine) Calculate(req model.CalculationRequest) (*model.CalculationResult, *model.ErrorEnvelope) {
	if req.Quantity <= 0 {
		return nil, model.NewCalculationError(
			fmt.Sprintf("quantity must be positive, got %d", req.Quantity),
		)
	}

	// Resolve every referenced modifier up front so an unknown code fails
	// the whole calculation before any step is recorded.
	selected := make([]model.PriceModifier, 0, len(req.ModifierIDs))
	selectedSet := make(map[string]bool, len(req.ModifierIDs))
	for _, id := range req.ModifierIDs {
		m, ok := e.catalog.Modifier(id)
		if !ok {
			return nil, model.NewCalculationError(fmt.Sprintf("unknown modifier %q", id))
		}
		if !m.Active {
			return nil, model.NewCalculationError(fmt.Sprintf("modifier %q is not active", id))
		}
		selected = append(selected, m)
		selectedSet[id] = true
	}

	rangeValues := make(map[string]float64, len(req.RangeModifierValues))
	for _, rv := range req.RangeModifierValues {
		rangeValues[rv.ModifierID] = rv.Percentage
	}
	fixedQuantities := make(map[string]int, len(req.FixedModifierQuantities))
	for _, fq := range req.FixedModifierQuantities {
		fixedQuantities[fq.ModifierID] = fq.Quantity
	}

	b := newBreakdown()

	// Step 1: base unit price from the catalog, black/multicolor variant
	// included.
	baseUnit, cerr := e.catalog.BasePrice(req.CategoryCode, req.ItemName, req.Color)
	if cerr != nil {
		return nil, cerr
	}
	price := float64(baseUnit)
	b.record("base_price", "", "",
		fmt.Sprintf("base price for %s (%s)", req.ItemName, req.CategoryCode), 0, price)

	// Step 2: FIXED and ADDITION modifiers, in catalog-declared order.
	for _, m := range e.catalog.ModifiersInDeclaredOrder(selectedSet) {
		switch m.Type {
		case model.ModifierFixed:
			qty, supplied := fixedQuantities[m.Code]
			if !supplied {
				qty = 1
			}
			if qty <= 0 {
				return nil, model.NewCalculationError(
					fmt.Sprintf("modifier %q quantity must be positive, got %d", m.Code, qty),
				)
			}
			delta := m.Value * float64(qty)
			b.record("fixed_modifier", m.Code, m.Name,
				fmt.Sprintf("+%v x %d", m.Value, qty), price, price+delta)
			price += delta
		case model.ModifierAddition:
			b.record("addition_modifier", m.Code, m.Name,
				fmt.Sprintf("+%v", m.Value), price, price+m.Value)
			price += m.Value
		}
	}

	// Step 3: PERCENTAGE and RANGE_PERCENTAGE modifiers, multiplicative
	// on the running price, in the caller's selection order.
	for _, m := range selected {
		switch m.Type {
		case model.ModifierPercentage:
			after := price * (1 + m.Value/100)
			b.record("percentage_modifier", m.Code, m.Name,
				fmt.Sprintf("%+v%%", m.Value), price, after)
			price = after
		case model.ModifierRangePercentage:
			pct, ok := rangeValues[m.Code]
			if !ok {
				return nil, model.NewCalculationError(
					fmt.Sprintf("modifier %q requires a selected percentage in [%v,%v]",
						m.Code, m.MinValue, m.MaxValue),
				)
			}
			if pct < m.MinValue || pct > m.MaxValue {
				return nil, model.NewCalculationError(
					fmt.Sprintf("modifier %q value %v is outside [%v,%v]",
						m.Code, pct, m.MinValue, m.MaxValue),
				)
			}
			after := price * (1 + pct/100)
			b.record("range_modifier", m.Code, m.Name,
				fmt.Sprintf("%+v%% (selected)", pct), price, after)
			price = after
		}
	}

	// Step 4: urgency surcharge.
	if req.Expedited {
		if req.ExpeditePercent < 0 {
			return nil, model.NewCalculationError(
				fmt.Sprintf("expedite percent must not be negative, got %v", req.ExpeditePercent),
			)
		}
		after := price * (1 + req.ExpeditePercent/100)
		b.record("urgency", "", "",
			fmt.Sprintf("expedited +%v%%", req.ExpeditePercent), price, after)
		price = after
	}

	// Step 5: discount, capped by the discount type. A request above the
	// cap fails; it is never clamped to the maximum.
	if req.DiscountPercent != 0 {
		if req.DiscountPercent < 0 {
			return nil, model.NewCalculationError(
				fmt.Sprintf("discount percent must not be negative, got %v", req.DiscountPercent),
			)
		}
		dt, ok := e.catalog.DiscountType(req.DiscountCode)
		if !ok {
			return nil, model.NewCalculationError(
				fmt.Sprintf("unknown discount type %q", req.DiscountCode),
			)
		}
		if !dt.Enabled {
			return nil, model.NewCalculationError(
				fmt.Sprintf("discount type %q is not enabled", req.DiscountCode),
			)
		}
		if req.DiscountPercent > dt.MaxPercent {
			return nil, model.NewCalculationError(
				fmt.Sprintf("discount %v%% exceeds the %v%% maximum of type %q",
					req.DiscountPercent, dt.MaxPercent, req.DiscountCode),
			)
		}
		after := price * (1 - req.DiscountPercent/100)
		b.record("discount", dt.Code, dt.Name,
			fmt.Sprintf("-%v%%", req.DiscountPercent), price, after)
		price = after
	}

	// Step 6: quantity.
	total := price * float64(req.Quantity)
	b.record("quantity", "", "",
		fmt.Sprintf("x %d", req.Quantity), price, total)

	// Step 7: round to the minor unit, half-up, and record the delta.
	finalUnit := roundHalfUp(price)
	finalTotal := roundHalfUp(total)
	b.record("rounding", "", "", "round to minor unit", total, float64(finalTotal))

	return &model.CalculationResult{
		BaseUnitPrice:   baseUnit,
		Quantity:        req.Quantity,
		BaseTotalPrice:  baseUnit * int64(req.Quantity),
		FinalUnitPrice:  finalUnit,
		FinalTotalPrice: finalTotal,
		Details:         b.steps,
	}, nil
}

// breakdown accumulates the append-only audit trail of one calculation.
type breakdown struct {
	steps []model.PriceBreakdownStep
}

func newBreakdown() *breakdown {
	return &breakdown{}
}

func (b *breakdown) record(name, modifierID, modifierName, description string, before, after float64) {
	b.steps = append(b.steps, model.PriceBreakdownStep{
		Index:        len(b.steps),
		Name:         name,
		ModifierID:   modifierID,
		ModifierName: modifierName,
		Description:  description,
		PriceBefore:  before,
		PriceAfter:   after,
		Difference:   after - before,
	})
}
