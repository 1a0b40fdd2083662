package coordinate

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pressline/lavanda/internal/validate"
	"github.com/pressline/lavanda/internal/wizard"
	"github.com/pressline/lavanda/model"
)

// applyEvent decodes and validates the event payload, then writes the
// result into the session's order context. It mutates only the in-memory
// copy; the caller persists on success.
func (c *Coordinator) applyEvent(sess *model.WizardSession, event string, data json.RawMessage, now time.Time) *model.ErrorEnvelope {
	octx := &sess.Context

	switch event {
	case wizard.EventClientSelected:
		var p model.ClientSearchPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		if res := validate.ClientSearch(p); !res.Valid {
			return res.Envelope()
		}
		octx.Client.Client = model.ClientInfo{ClientID: p.ClientID}

	case wizard.EventClientCreated:
		var p model.NewClientPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		if res := validate.NewClient(p); !res.Valid {
			return res.Envelope()
		}
		octx.Client.Client = model.ClientInfo{
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Phone:     p.Phone,
			Email:     p.Email,
			Address:   p.Address,
			IsNew:     true,
		}

	case wizard.EventBasicInfoConfirmed:
		var p model.BasicInfoPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		if res := validate.BasicInfo(p); !res.Valid {
			return res.Envelope()
		}
		octx.Client.Basic = model.BasicOrderInfo{OrderType: p.OrderType, Notes: p.Notes}

	case wizard.EventItemInfoConfirmed:
		var p model.ItemBasicInfoPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		if res := validate.ItemBasicInfo(p); !res.Valid {
			return res.Envelope()
		}
		octx.Items.Draft = &model.OrderItemDraft{
			CategoryCode: p.CategoryCode,
			ItemName:     p.ItemName,
			Quantity:     p.Quantity,
		}

	case wizard.EventCharacteristicsConfirmed:
		draft := octx.Items.Draft
		if draft == nil {
			return model.NewTransitionRejectedError("no item draft in progress")
		}
		var p model.CharacteristicsPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		if res := validate.Characteristics(p); !res.Valid {
			return res.Envelope()
		}
		draft.Material = p.Material
		draft.Color = p.Color

	case wizard.EventStainsDefectsConfirmed:
		draft := octx.Items.Draft
		if draft == nil {
			return model.NewTransitionRejectedError("no item draft in progress")
		}
		var p model.StainsDefectsPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		if res := validate.StainsDefects(p); !res.Valid {
			return res.Envelope()
		}
		draft.Stains = p.Stains
		draft.Defects = p.Defects

	case wizard.EventAddItem, wizard.EventItemsDone:
		return c.applyPriceDiscount(octx, data)

	case wizard.EventParametersConfirmed:
		var p model.ParametersPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		if res := validate.Parameters(p); !res.Valid {
			return res.Envelope()
		}
		octx.Parameters.PickupDate = p.PickupDate
		octx.Parameters.Expedited = p.Expedited
		octx.Parameters.ExpeditePercent = p.ExpeditePercent
		octx.Parameters.Notes = p.Notes

	case wizard.EventRemoveItem:
		var p model.SummaryPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		if p.RemoveItemIndex == nil {
			return model.NewValidationError([]model.FieldError{{
				Field: "remove_item_index", Code: "REQUIRED",
				Message: "remove_item_index is required",
			}})
		}
		if res := validate.Summary(p, len(octx.Items.Items)); !res.Valid {
			return res.Envelope()
		}
		idx := *p.RemoveItemIndex
		octx.Items.Items = append(octx.Items.Items[:idx], octx.Items.Items[idx+1:]...)

	case wizard.EventSummaryConfirmed:
		var p model.SummaryPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		p.RemoveItemIndex = nil
		if res := validate.Summary(p, len(octx.Items.Items)); !res.Valid {
			return res.Envelope()
		}
		octx.Confirmation.SummaryConfirmed = true

	case wizard.EventLegalAccepted:
		var p model.LegalAspectsPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		if res := validate.LegalAspects(p); !res.Valid {
			return res.Envelope()
		}
		octx.Confirmation.LegalAccepted = true
		octx.Confirmation.LegalSignature = p.Signature

	case wizard.EventReceiptGenerated:
		var p model.ReceiptPayload
		if err := decodePayload(data, &p); err != nil {
			return err
		}
		if res := validate.Receipt(p); !res.Valid {
			return res.Envelope()
		}
		octx.Confirmation.ReceiptNumber = receiptNumber(now)
		octx.Confirmation.ReceiptGeneratedAt = &now

	case wizard.EventNewClient, wizard.EventComplete, wizard.EventGoBack, wizard.EventCancel:
		// Navigation-only events carry no payload. Going back keeps the
		// accumulated context intact.
	}

	return nil
}

// applyPriceDiscount finalizes the draft item: it runs the price
// calculation as the sub-step's validation and, on success, moves the
// draft into the completed item list.
func (c *Coordinator) applyPriceDiscount(octx *model.OrderContext, data json.RawMessage) *model.ErrorEnvelope {
	draft := octx.Items.Draft
	if draft == nil {
		return model.NewTransitionRejectedError("no item draft in progress")
	}

	var p model.PriceDiscountPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}

	req := model.CalculationRequest{
		CategoryCode:            draft.CategoryCode,
		ItemName:                draft.ItemName,
		Quantity:                draft.Quantity,
		Color:                   draft.Color,
		ModifierIDs:             p.ModifierIDs,
		RangeModifierValues:     p.RangeModifierValues,
		FixedModifierQuantities: p.FixedModifierQuantities,
		Expedited:               p.Expedited,
		ExpeditePercent:         p.ExpeditePercent,
		DiscountPercent:         p.DiscountPercent,
		DiscountCode:            p.DiscountCode,
	}

	vres, calc := validate.PriceDiscount(c.engine, req)
	if !vres.Valid {
		return vres.Envelope()
	}

	draft.ModifierCodes = p.ModifierIDs
	draft.Breakdown = calc
	octx.Items.Items = append(octx.Items.Items, *draft)
	octx.Items.Draft = nil
	return nil
}

// decodePayload strictly decodes an event payload. Unknown fields are a
// validation error, not silent data loss.
func decodePayload[T any](data json.RawMessage, out *T) *model.ErrorEnvelope {
	if len(data) == 0 {
		data = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return model.NewValidationError([]model.FieldError{{
			Field: "data", Code: "MALFORMED", Message: err.Error(),
		}})
	}
	return nil
}

// receiptNumber generates a human-readable receipt identifier.
func receiptNumber(now time.Time) string {
	short := strings.ToUpper(uuid.New().String()[:8])
	return "R-" + now.Format("20060102") + "-" + short
}
