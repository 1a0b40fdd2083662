package model

import "time"

// OrderContext is the typed context bag accumulated across wizard stages.
// Each stage owns one section; a sub-step writes only into its own stage's
// section, validated at the stage boundary.
type OrderContext struct {
	Client       ClientContext       `json:"client"`
	Items        ItemsContext        `json:"items"`
	Parameters   ParametersContext   `json:"parameters"`
	Confirmation ConfirmationContext `json:"confirmation"`
}

// ClientContext holds the stage-1 results.
type ClientContext struct {
	Client ClientInfo     `json:"client"`
	Basic  BasicOrderInfo `json:"basic"`
}

// ClientInfo identifies the order's client, either looked up or newly
// entered.
type ClientInfo struct {
	ClientID  string `json:"client_id,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	Address   string `json:"address,omitempty"`
	IsNew     bool   `json:"is_new"`
}

// BasicOrderInfo holds order-level basics entered in stage 1.
type BasicOrderInfo struct {
	OrderType string `json:"order_type"`
	Notes     string `json:"notes,omitempty"`
}

// ItemsContext holds the stage-2 results: the list of completed item
// drafts plus the one currently being entered.
type ItemsContext struct {
	Items []OrderItemDraft `json:"items"`
	Draft *OrderItemDraft  `json:"draft,omitempty"`
}

// TotalPrice sums the final total price across all completed items.
func (ic ItemsContext) TotalPrice() int64 {
	var total int64
	for _, it := range ic.Items {
		if it.Breakdown != nil {
			total += it.Breakdown.FinalTotalPrice
		}
	}
	return total
}

// OrderItemDraft is one garment being added to the order. It accumulates
// across the four stage-2 sub-steps and becomes immutable once the order
// is finalized.
type OrderItemDraft struct {
	CategoryCode  string             `json:"category_code"`
	ItemName      string             `json:"item_name"`
	Quantity      int                `json:"quantity"`
	Material      string             `json:"material,omitempty"`
	Color         string             `json:"color,omitempty"`
	Stains        []string           `json:"stains,omitempty"`
	Defects       []string           `json:"defects,omitempty"`
	ModifierCodes []string           `json:"modifier_codes,omitempty"`
	Breakdown     *CalculationResult `json:"breakdown,omitempty"`
}

// ParametersContext holds the stage-3 results.
type ParametersContext struct {
	PickupDate      string  `json:"pickup_date,omitempty"`
	Expedited       bool    `json:"expedited"`
	ExpeditePercent float64 `json:"expedite_percent,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

// ConfirmationContext holds the stage-4 results.
type ConfirmationContext struct {
	SummaryConfirmed   bool       `json:"summary_confirmed"`
	LegalAccepted      bool       `json:"legal_accepted"`
	LegalSignature     string     `json:"legal_signature,omitempty"`
	ReceiptNumber      string     `json:"receipt_number,omitempty"`
	ReceiptGeneratedAt *time.Time `json:"receipt_generated_at,omitempty"`
}

// --- Sub-step payloads ---
//
// Each advance event carries one of these in the request's data field. The
// coordinator decodes into the typed payload before validation; unknown or
// missing fields surface as field-level validation errors, never as state
// corruption.

// ClientSearchPayload selects an existing client.
type ClientSearchPayload struct {
	ClientID string `json:"client_id"`
}

// NewClientPayload registers a walk-in client.
type NewClientPayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email,omitempty"`
	Address   string `json:"address,omitempty"`
}

// BasicInfoPayload confirms order-level basics.
type BasicInfoPayload struct {
	OrderType string `json:"order_type"`
	Notes     string `json:"notes,omitempty"`
}

// ItemBasicInfoPayload starts a new item draft.
type ItemBasicInfoPayload struct {
	CategoryCode string `json:"category_code"`
	ItemName     string `json:"item_name"`
	Quantity     int    `json:"quantity"`
}

// CharacteristicsPayload sets the draft item's physical characteristics.
type CharacteristicsPayload struct {
	Material string `json:"material"`
	Color    string `json:"color"`
}

// StainsDefectsPayload records observed stains and defects.
type StainsDefectsPayload struct {
	Stains  []string `json:"stains"`
	Defects []string `json:"defects"`
}

// PriceDiscountPayload selects modifiers, urgency, and discount for the
// draft item.
type PriceDiscountPayload struct {
	ModifierIDs             []string                `json:"modifier_ids"`
	RangeModifierValues     []RangeModifierValue    `json:"range_modifier_values,omitempty"`
	FixedModifierQuantities []FixedModifierQuantity `json:"fixed_modifier_quantities,omitempty"`
	Expedited               bool                    `json:"expedited,omitempty"`
	ExpeditePercent         float64                 `json:"expedite_percent,omitempty"`
	DiscountPercent         float64                 `json:"discount_percent,omitempty"`
	DiscountCode            string                  `json:"discount_code,omitempty"`
}

// ParametersPayload confirms stage-3 order parameters.
type ParametersPayload struct {
	PickupDate      string  `json:"pickup_date"`
	Expedited       bool    `json:"expedited"`
	ExpeditePercent float64 `json:"expedite_percent,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

// SummaryPayload confirms the order summary. RemoveItemIndex, when
// non-nil, removes a completed item instead of advancing.
type SummaryPayload struct {
	Confirmed       bool `json:"confirmed"`
	RemoveItemIndex *int `json:"remove_item_index,omitempty"`
}

// LegalAspectsPayload records the client's acceptance of terms.
type LegalAspectsPayload struct {
	Accepted  bool   `json:"accepted"`
	Signature string `json:"signature,omitempty"`
}

// ReceiptPayload acknowledges receipt generation.
type ReceiptPayload struct {
	Acknowledged bool `json:"acknowledged"`
}
