// Package validate holds one pure validator per wizard sub-step. A
// validator inspects sub-step data and returns a valid/invalid result
// with field-level error messages; it never mutates session state. The
// coordinator decides whether to advance based on the result.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/pressline/lavanda/internal/pricing"
	"github.com/pressline/lavanda/model"
)

// Result is the outcome of validating one sub-step payload.
type Result struct {
	Valid  bool
	Errors []model.FieldError
}

// Envelope converts an invalid result to a VALIDATION_ERROR envelope.
func (r Result) Envelope() *model.ErrorEnvelope {
	return model.NewValidationError(r.Errors)
}

type resultBuilder struct {
	errors []model.FieldError
}

func (b *resultBuilder) add(field, code, msg string) {
	b.errors = append(b.errors, model.FieldError{Field: field, Code: code, Message: msg})
}

func (b *resultBuilder) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		b.add(field, "REQUIRED", field+" is required")
	}
}

func (b *resultBuilder) result() Result {
	return Result{Valid: len(b.errors) == 0, Errors: b.errors}
}

// ClientSearch validates the selection of an existing client.
func ClientSearch(p model.ClientSearchPayload) Result {
	var b resultBuilder
	b.require("client_id", p.ClientID)
	return b.result()
}

// NewClient validates a walk-in client registration.
func NewClient(p model.NewClientPayload) Result {
	var b resultBuilder
	b.require("first_name", p.FirstName)
	b.require("last_name", p.LastName)
	b.require("phone", p.Phone)
	if p.Phone != "" && !validPhone(p.Phone) {
		b.add("phone", "INVALID", "phone must contain 6 to 15 digits")
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		b.add("email", "INVALID", "email address is malformed")
	}
	return b.result()
}

// BasicInfo validates the order-level basics.
func BasicInfo(p model.BasicInfoPayload) Result {
	var b resultBuilder
	b.require("order_type", p.OrderType)
	switch p.OrderType {
	case "", "standard", "delicate", "express":
	default:
		b.add("order_type", "INVALID",
			fmt.Sprintf("unknown order type %q", p.OrderType))
	}
	return b.result()
}

// ItemBasicInfo validates the start of a new item draft.
func ItemBasicInfo(p model.ItemBasicInfoPayload) Result {
	var b resultBuilder
	b.require("category_code", p.CategoryCode)
	b.require("item_name", p.ItemName)
	if p.Quantity <= 0 {
		b.add("quantity", "INVALID", "quantity must be positive")
	}
	return b.result()
}

// Characteristics validates the item's physical characteristics.
func Characteristics(p model.CharacteristicsPayload) Result {
	var b resultBuilder
	b.require("material", p.Material)
	b.require("color", p.Color)
	return b.result()
}

// StainsDefects validates the recorded stains and defects.
func StainsDefects(p model.StainsDefectsPayload) Result {
	var b resultBuilder
	for i, s := range p.Stains {
		if strings.TrimSpace(s) == "" {
			b.add(fmt.Sprintf("stains[%d]", i), "INVALID", "stain code must not be empty")
		}
	}
	for i, d := range p.Defects {
		if strings.TrimSpace(d) == "" {
			b.add(fmt.Sprintf("defects[%d]", i), "INVALID", "defect code must not be empty")
		}
	}
	return b.result()
}

// PriceDiscount validates the modifier and discount selection by running
// the price calculation. A CalculationError is a validation failure on
// the modifiers field, not a fatal error; the session stays unchanged and
// the operator can correct the selection. On success the computed result
// is returned so the coordinator stores it without recalculating.
func PriceDiscount(engine *pricing.Engine, req model.CalculationRequest) (Result, *model.CalculationResult) {
	var b resultBuilder
	res, cerr := engine.Calculate(req)
	if cerr != nil {
		b.add("modifiers", model.ErrCalculationError, cerr.Message)
		return b.result(), nil
	}
	return b.result(), res
}

// Parameters validates the stage-3 order parameters.
func Parameters(p model.ParametersPayload) Result {
	var b resultBuilder
	if p.PickupDate != "" {
		if _, err := time.Parse("2006-01-02", p.PickupDate); err != nil {
			b.add("pickup_date", "INVALID", "pickup_date must be YYYY-MM-DD")
		}
	}
	if p.Expedited && p.ExpeditePercent < 0 {
		b.add("expedite_percent", "INVALID", "expedite_percent must not be negative")
	}
	if !p.Expedited && p.ExpeditePercent != 0 {
		b.add("expedite_percent", "INVALID", "expedite_percent requires expedited")
	}
	return b.result()
}

// Summary validates a summary confirmation or item removal.
func Summary(p model.SummaryPayload, itemCount int) Result {
	var b resultBuilder
	if p.RemoveItemIndex != nil {
		idx := *p.RemoveItemIndex
		if idx < 0 || idx >= itemCount {
			b.add("remove_item_index", "INVALID",
				fmt.Sprintf("index %d is out of range (0..%d)", idx, itemCount-1))
		}
		return b.result()
	}
	if !p.Confirmed {
		b.add("confirmed", "REQUIRED", "summary must be confirmed to continue")
	}
	if itemCount == 0 {
		b.add("items", "INVALID", "an order needs at least one item")
	}
	return b.result()
}

// LegalAspects validates the client's acceptance of terms.
func LegalAspects(p model.LegalAspectsPayload) Result {
	var b resultBuilder
	if !p.Accepted {
		b.add("accepted", "REQUIRED", "legal terms must be accepted")
	}
	return b.result()
}

// Receipt validates the receipt acknowledgement.
func Receipt(p model.ReceiptPayload) Result {
	var b resultBuilder
	if !p.Acknowledged {
		b.add("acknowledged", "REQUIRED", "receipt must be acknowledged")
	}
	return b.result()
}

func validPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 6 && digits <= 15
}
