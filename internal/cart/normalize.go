package cart

import (
	"fmt"
	"strings"

	"gallery-service/internal/apperr"
	"gallery-service/internal/models"
)

// Normalize validates items submitted at checkout and merges duplicate lines.
// Unlike AddItem it rejects quantities over the cap instead of clamping them.
func Normalize(items []models.CartLineItem, maxPrintQuantity int) ([]models.CartLineItem, error) {
	if maxPrintQuantity <= 0 {
		maxPrintQuantity = DefaultMaxPrintQuantity
	}
	if len(items) == 0 {
		return nil, apperr.Validation("cart is empty", map[string]string{"items": "at least one item is required"})
	}

	fields := make(map[string]string)
	out := make([]models.CartLineItem, 0, len(items))
	index := make(map[string]int, len(items))

	for i, item := range items {
		item.PrintSize = strings.TrimSpace(item.PrintSize)
		if err := validateLine(item, maxPrintQuantity); err != nil {
			if appErr, ok := err.(*apperr.Error); ok {
				for k, v := range appErr.Fields {
					fields[fmt.Sprintf("items[%d].%s", i, k)] = v
				}
			}
			continue
		}

		item.ID = LineItemID(item.ArtworkID, item.Type, item.PrintSize)
		if pos, ok := index[item.ID]; ok {
			out[pos].Quantity += item.Quantity
			switch {
			case out[pos].Type == models.PurchaseTypeOriginal:
				fields[fmt.Sprintf("items[%d]", i)] = "an original can only be purchased once"
			case out[pos].Quantity > maxPrintQuantity:
				fields[fmt.Sprintf("items[%d].quantity", i)] = fmt.Sprintf("combined quantity exceeds %d", maxPrintQuantity)
			}
			continue
		}
		index[item.ID] = len(out)
		out = append(out, item)
	}

	if len(fields) > 0 {
		return nil, apperr.Validation("invalid cart", fields)
	}
	return out, nil
}

func validateLine(item models.CartLineItem, maxPrintQuantity int) error {
	fields := make(map[string]string)

	if item.ArtworkID <= 0 {
		fields["artwork_id"] = "is required"
	}

	switch item.Type {
	case models.PurchaseTypeOriginal:
		if item.PrintSize != "" {
			fields["print_size"] = "must be empty for originals"
		}
		if item.Quantity != 1 {
			fields["quantity"] = "must be 1 for originals"
		}
	case models.PurchaseTypePrint:
		if item.PrintSize == "" {
			fields["print_size"] = "is required for prints"
		}
		if item.Quantity < 1 {
			fields["quantity"] = "must be at least 1"
		} else if item.Quantity > maxPrintQuantity {
			fields["quantity"] = fmt.Sprintf("must be at most %d", maxPrintQuantity)
		}
	default:
		fields["type"] = "must be original or print"
	}

	if item.UnitPrice.IsNegative() {
		fields["unit_price"] = "must not be negative"
	}

	if len(fields) > 0 {
		return apperr.Validation("invalid cart item", fields)
	}
	return nil
}
